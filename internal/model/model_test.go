package model

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chriscorrea/relatos/internal/category"
	"github.com/chriscorrea/relatos/internal/classify"
	"github.com/chriscorrea/relatos/internal/textproc"
	"github.com/chriscorrea/relatos/internal/tfidf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fitted(t *testing.T) *Model {
	t.Helper()

	corpus := []string{"text long", "cont multiplic", "nerv apresent", "distra barulh", "organ temp", "praz entreg"}
	table, err := tfidf.Fit(corpus, 0)
	require.NoError(t, err)

	labels := []int{0, 1, 2, 3, 4, 5}
	nb, err := classify.Fit(context.Background(), table.TransformAll(corpus), labels, category.Count, classify.DefaultAlpha)
	require.NoError(t, err)

	m, err := New(textproc.Spec{Language: "portuguese", Stemmer: "rslp"}, table, nb)
	require.NoError(t, err)
	return m
}

func TestNew(t *testing.T) {
	m := fitted(t)
	assert.NotEmpty(t, m.ID)
	assert.False(t, m.CreatedAt.IsZero())
	assert.Equal(t, category.Labels(), m.Categories)

	other := fitted(t)
	assert.NotEqual(t, m.ID, other.ID)
}

func TestNewRejectsMismatchedParts(t *testing.T) {
	table, err := tfidf.Fit([]string{"a b c"}, 0)
	require.NoError(t, err)
	nb, err := classify.Fit(context.Background(), []tfidf.Vector{{1, 0}}, []int{0}, category.Count, 1)
	require.NoError(t, err)

	_, err = New(textproc.Spec{}, table, nb)
	assert.ErrorIs(t, err, classify.ErrDimensionMismatch)
}

func TestClassify(t *testing.T) {
	m := fitted(t)

	got, dist, err := m.Classify("multiplic cont")
	require.NoError(t, err)
	assert.Equal(t, category.Math, got)
	assert.Equal(t, got, dist.Argmax())
	assert.True(t, dist.Valid(1e-6))

	_, dist, err = m.Classify("")
	require.NoError(t, err)
	assert.True(t, dist.Valid(1e-6))

	// Out-of-vocabulary terms score exactly like an empty document.
	_, unknown, err := m.Classify("xadrez futebol")
	require.NoError(t, err)
	assert.Equal(t, dist, unknown)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := fitted(t)

	var buf bytes.Buffer
	require.NoError(t, m.Save(&buf))

	restored, err := Load(&buf)
	require.NoError(t, err)

	assert.Equal(t, m.ID, restored.ID)
	assert.True(t, m.CreatedAt.Equal(restored.CreatedAt))
	assert.Equal(t, m.Pipeline, restored.Pipeline)
	assert.Equal(t, m.Vectorizer.Vocabulary().Terms(), restored.Vectorizer.Vocabulary().Terms())

	for _, doc := range []string{"", "text long", "organ temp entreg", "unknown terms"} {
		wantCat, wantDist, err := m.Classify(doc)
		require.NoError(t, err)
		gotCat, gotDist, err := restored.Classify(doc)
		require.NoError(t, err)

		assert.Equal(t, wantCat, gotCat, "doc %q", doc)
		assert.Equal(t, wantDist, gotDist, "doc %q", doc)
	}
}

func TestSaveLoadFile(t *testing.T) {
	m := fitted(t)
	path := filepath.Join(t.TempDir(), "models", "relatos.json")

	require.NoError(t, m.SaveFile(path))
	restored, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, m.ID, restored.ID)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCorrupt)
}

func TestLoadCorrupt(t *testing.T) {
	m := fitted(t)
	var buf bytes.Buffer
	require.NoError(t, m.Save(&buf))

	mutate := func(fn func(a map[string]any)) string {
		var a map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &a))
		fn(a)
		out, err := json.Marshal(a)
		require.NoError(t, err)
		return string(out)
	}

	tests := []struct {
		name  string
		input string
	}{
		{"not json", "pickle\x80\x04"},
		{"truncated", buf.String()[:buf.Len()/2]},
		{"future version", mutate(func(a map[string]any) { a["version"] = 2 })},
		{"missing id", mutate(func(a map[string]any) { delete(a, "id") })},
		{"idf length mismatch", mutate(func(a map[string]any) { a["idf"] = []float64{1} })},
		{"priors do not sum to one", mutate(func(a map[string]any) { a["priors"] = []float64{1, 1, 1, 1, 1, 1} })},
		{"reordered categories", mutate(func(a map[string]any) {
			labels := category.Labels()
			labels[0], labels[1] = labels[1], labels[0]
			a["categories"] = labels
		})},
		{"too few classes", mutate(func(a map[string]any) {
			a["priors"] = []float64{1}
			a["likelihoods"] = a["likelihoods"].([]any)[:1]
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}
