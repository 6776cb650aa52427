package batch

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/chriscorrea/relatos/internal/category"
	"github.com/chriscorrea/relatos/internal/dataset"
	"github.com/chriscorrea/relatos/internal/evaluate"
	"github.com/chriscorrea/relatos/internal/predict"
	"github.com/chriscorrea/relatos/internal/textproc"
	"github.com/chriscorrea/relatos/internal/train"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedPredictor assigns categories round-robin and records its input.
type fixedPredictor struct {
	seen []string
	err  error
}

func (f *fixedPredictor) PredictBatch(_ context.Context, docs []string) ([]predict.Result, error) {
	f.seen = docs
	if f.err != nil {
		return nil, f.err
	}
	results := make([]predict.Result, len(docs))
	for i := range docs {
		c := category.Category(i % category.Count)
		results[i] = predict.Result{Category: c, Label: c.Label(), Distribution: category.Uniform()}
	}
	return results, nil
}

func TestRead(t *testing.T) {
	input := "\ufeff id , texto \n1,\"primeiro, com vírgula\"\n2,segundo\n3\n"

	table, err := Read(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "texto"}, table.Header)
	assert.Len(t, table.Rows, 3)
	assert.Equal(t, []string{"primeiro, com vírgula", "segundo", ""}, table.Texts())
}

func TestReadMissingColumn(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"wrong column", "text\nalgo\n"},
		{"column in a data row only", "id\ntexto\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, ErrMissingColumn)
		})
	}
}

func TestClassify(t *testing.T) {
	table, err := Read(strings.NewReader("id,texto\n1,a\n2,b\n3,c\n"))
	require.NoError(t, err)

	p := &fixedPredictor{}
	out, results, err := Classify(context.Background(), p, table)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, p.seen)
	assert.Equal(t, []string{"id", "texto", LabelColumn, IndexColumn}, out.Header)
	require.Len(t, out.Rows, 3)
	assert.Len(t, results, 3)
	assert.Equal(t, []string{"1", "a", category.Reading.Label(), "0"}, out.Rows[0])
	assert.Equal(t, []string{"3", "c", category.Anxiety.Label(), "2"}, out.Rows[2])

	assert.Len(t, table.Header, 2, "input table is not modified")
}

func TestClassifyOverwritesExistingColumns(t *testing.T) {
	table, err := Read(strings.NewReader("categoria,texto,categoria_num\nold,a,9\n"))
	require.NoError(t, err)

	out, _, err := Classify(context.Background(), &fixedPredictor{}, table)
	require.NoError(t, err)

	assert.Equal(t, []string{"categoria", "texto", "categoria_num"}, out.Header)
	assert.Equal(t, []string{category.Reading.Label(), "a", "0"}, out.Rows[0])
}

func TestClassifyPredictorFailure(t *testing.T) {
	table, err := Read(strings.NewReader("texto\na\n"))
	require.NoError(t, err)

	_, _, err = Classify(context.Background(), &fixedPredictor{err: predict.ErrUnavailable}, table)
	assert.True(t, errors.Is(err, predict.ErrUnavailable))
}

func TestWriteRoundTrip(t *testing.T) {
	table := &Table{
		Header: []string{"texto", "categoria"},
		Rows:   [][]string{{"com, vírgula", "x"}, {"com \"aspas\"", "y"}},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, table))

	back, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, table, back)
}

func TestSummary(t *testing.T) {
	results := []predict.Result{
		{Category: category.Math},
		{Category: category.Anxiety},
		{Category: category.Math},
		{Category: category.Reading},
		{Category: category.Anxiety},
		{Category: category.Math},
	}

	assert.Equal(t, []Count{
		{category.Math, 3},
		{category.Anxiety, 2},
		{category.Reading, 1},
	}, Summary(results))
	assert.Empty(t, Summary(nil))
}

func TestClassifyWithTrainedModel(t *testing.T) {
	proc, err := textproc.NewProcessor(textproc.DefaultResources(), textproc.StemmerRules)
	require.NoError(t, err)
	result, err := train.New(proc, train.Config{Policy: evaluate.None{}}).Train(context.Background(), dataset.Sample())
	require.NoError(t, err)

	input := "texto\n" +
		"não consigo resolver equações de segundo grau\n" +
		"fico nervoso nas provas e esqueço tudo\n" +
		"sempre deixo tudo para a última hora\n"
	table, err := Read(strings.NewReader(input))
	require.NoError(t, err)

	out, _, err := Classify(context.Background(), predict.New(predict.StaticLoader(result.Model)), table)
	require.NoError(t, err)

	require.Len(t, out.Rows, 3)
	labels := category.Labels()
	for i, row := range out.Rows {
		assert.Contains(t, labels, row[out.Column(LabelColumn)], "row %d", i)
	}
	assert.Equal(t, category.Math.Label(), out.Rows[0][out.Column(LabelColumn)])
	assert.Equal(t, "1", out.Rows[0][out.Column(IndexColumn)])
}
