package predict

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chriscorrea/relatos/internal/cache"
	"github.com/chriscorrea/relatos/internal/category"
	"github.com/chriscorrea/relatos/internal/classify"
	"github.com/chriscorrea/relatos/internal/dataset"
	"github.com/chriscorrea/relatos/internal/evaluate"
	"github.com/chriscorrea/relatos/internal/model"
	"github.com/chriscorrea/relatos/internal/textproc"
	"github.com/chriscorrea/relatos/internal/train"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sampleOnce  sync.Once
	sampleModel *model.Model
)

// trainedModel fits the sample corpus once per test binary.
func trainedModel(t *testing.T) *model.Model {
	t.Helper()
	sampleOnce.Do(func() {
		proc, err := textproc.NewProcessor(textproc.DefaultResources(), textproc.StemmerRules)
		require.NoError(t, err)
		result, err := train.New(proc, train.Config{Policy: evaluate.None{}}).Train(context.Background(), dataset.Sample())
		require.NoError(t, err)
		sampleModel = result.Model
	})
	require.NotNil(t, sampleModel)
	return sampleModel
}

func TestPredict(t *testing.T) {
	p := New(StaticLoader(trainedModel(t)))
	ctx := context.Background()

	tests := []struct {
		name string
		text string
		want category.Category
	}{
		{"math report", "não consigo resolver equações de segundo grau", category.Math},
		{"math report with noise", "NÃO consigo resolver equações de 2º grau!!!", category.Math},
		{"deadline report", "sempre deixo os trabalhos para a última hora", category.Deadlines},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Predict(ctx, tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Category)
			assert.Equal(t, tt.want.Label(), res.Label)
			assert.Equal(t, res.Category, res.Distribution.Argmax())
			assert.True(t, res.Distribution.Valid(1e-6))
			assert.False(t, res.Degraded)

			again, err := p.Predict(ctx, tt.text)
			require.NoError(t, err)
			assert.Equal(t, res, again)
		})
	}
}

func TestPredictEmptyText(t *testing.T) {
	p := New(StaticLoader(trainedModel(t)))

	res, err := p.Predict(context.Background(), "")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Distribution.Sum(), 1e-6)
	for _, c := range category.All() {
		assert.GreaterOrEqual(t, res.Distribution.Of(c), 0.0)
		assert.LessOrEqual(t, res.Distribution.Of(c), 1.0)
	}
}

func TestPredictBatch(t *testing.T) {
	p := New(StaticLoader(trainedModel(t)), WithWorkers(2))

	docs := []string{
		"equações de segundo grau",
		"",
		"\xff\xfe",
		"fico nervoso nas provas",
		"123 !!!",
	}
	results, err := p.PredictBatch(context.Background(), docs)
	require.NoError(t, err)
	require.Len(t, results, len(docs))

	for i, res := range results {
		assert.True(t, res.Distribution.Valid(1e-6), "row %d", i)
		assert.NotEmpty(t, res.Label, "row %d", i)
	}
	single, err := p.Predict(context.Background(), docs[0])
	require.NoError(t, err)
	assert.Equal(t, single, results[0], "batch keeps input order")

	empty, err := p.PredictBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUnavailableThenRecovered(t *testing.T) {
	var ready atomic.Bool
	var loads atomic.Int32
	loader := LoaderFunc(func(context.Context) (*model.Model, error) {
		loads.Add(1)
		if !ready.Load() {
			return nil, errors.New("artifact not found")
		}
		return trainedModel(t), nil
	})
	p := New(loader)
	ctx := context.Background()

	_, err := p.Predict(ctx, "texto")
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = p.PredictBatch(ctx, []string{"a", "b"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, p.Ready(ctx), ErrUnavailable)
	assert.Empty(t, p.ModelID())

	ready.Store(true)
	require.NoError(t, p.Ready(ctx))
	assert.Equal(t, trainedModel(t).ID, p.ModelID())

	before := loads.Load()
	_, err = p.Predict(ctx, "texto")
	require.NoError(t, err)
	assert.Equal(t, before, loads.Load(), "a loaded model is cached")
}

func TestFileLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	p := New(FileLoader(path))

	_, err := p.Predict(context.Background(), "texto")
	assert.ErrorIs(t, err, ErrUnavailable)

	require.NoError(t, trainedModel(t).SaveFile(path))
	res, err := p.Predict(context.Background(), "frações são complicadas")
	require.NoError(t, err)
	assert.Equal(t, category.Math, res.Category)
}

func TestLanguageMismatchIsUnavailable(t *testing.T) {
	english := &textproc.Resources{
		Language:  "english",
		Stopwords: textproc.NewStopwords([]string{"the"}),
		Rules:     textproc.DefaultResources().Rules,
	}
	p := New(StaticLoader(trainedModel(t)), WithResources(english))

	_, err := p.Predict(context.Background(), "texto")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestResourceMismatchIsUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stopwords.txt")
	require.NoError(t, os.WriteFile(path, []byte("de\nos\n"), 0o644))
	other, err := textproc.LoadResources(textproc.ResourceOptions{StopwordsFile: path})
	require.NoError(t, err)
	require.Equal(t, textproc.DefaultLanguage, other.Language)

	p := New(StaticLoader(trainedModel(t)), WithResources(other))
	_, err = p.Predict(context.Background(), "frações são complicadas")
	assert.ErrorIs(t, err, ErrUnavailable)

	same := New(StaticLoader(trainedModel(t)), WithResources(textproc.DefaultResources()))
	assert.NoError(t, same.Ready(context.Background()))
}

// panicStore fails hard on one key and behaves like memoryStore otherwise.
type panicStore struct {
	memoryStore
	poisoned string
}

func (s *panicStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == s.poisoned {
		panic("store corrupted")
	}
	return s.memoryStore.Get(ctx, key)
}

func TestPredictBatchDegradesFailingDocument(t *testing.T) {
	m := trainedModel(t)
	proc, err := textproc.NewProcessor(textproc.DefaultResources(), textproc.StemmerRules)
	require.NoError(t, err)

	docs := []string{
		"equações de segundo grau são um mistério",
		"tenho medo de tirar notas baixas",
		"nunca lembro dos prazos de entrega",
	}
	store := &panicStore{
		memoryStore: memoryStore{data: make(map[string][]byte)},
		poisoned:    cache.Key(m.ID, proc.Process(docs[1])),
	}
	p := New(StaticLoader(m), WithCache(cache.New[Result](store, time.Minute)), WithWorkers(2))

	results, err := p.PredictBatch(context.Background(), docs)
	require.NoError(t, err)
	require.Len(t, results, len(docs))

	assert.Equal(t, category.Math, results[0].Category)
	assert.False(t, results[0].Degraded)

	assert.True(t, results[1].Degraded)
	assert.Equal(t, category.Uniform(), results[1].Distribution)

	assert.Equal(t, category.Deadlines, results[2].Category)
	assert.False(t, results[2].Degraded)
}

func TestPredictBatchDegradesOnClassifierError(t *testing.T) {
	priors := make([]float64, category.Count)
	likelihoods := make([][]float64, category.Count)
	for i := range priors {
		priors[i] = 1.0 / category.Count
		likelihoods[i] = []float64{0.5, 0.5}
	}
	nb, err := classify.New(priors, likelihoods)
	require.NoError(t, err)

	// a classifier narrower than the vocabulary fails every document
	broken := *trainedModel(t)
	broken.Classifier = nb
	p := New(StaticLoader(&broken))

	_, err = p.Predict(context.Background(), "frações são complicadas")
	assert.ErrorIs(t, err, classify.ErrDimensionMismatch)

	results, err := p.PredictBatch(context.Background(), []string{"frações", "prazos"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for i, res := range results {
		assert.True(t, res.Degraded, "row %d", i)
		assert.Equal(t, category.Uniform(), res.Distribution, "row %d", i)
	}
}

// memoryStore is an in-process cache.Store.
type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return v, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func TestPredictWithCache(t *testing.T) {
	store := &memoryStore{data: make(map[string][]byte)}
	c := cache.New[Result](store, time.Minute)
	p := New(StaticLoader(trainedModel(t)), WithCache(c))
	ctx := context.Background()

	first, err := p.Predict(ctx, "tenho medo de tirar notas baixas")
	require.NoError(t, err)
	assert.Len(t, store.data, 1)

	// same processed text, different surface form
	second, err := p.Predict(ctx, "Tenho MEDO de tirar notas baixas!")
	require.NoError(t, err)

	hits, _ := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, first.Category, second.Category)
	assert.InDeltaSlice(t, first.Distribution[:], second.Distribution[:], 1e-12)
}

func TestResultJSON(t *testing.T) {
	dist := category.Distribution{0.1, 0.5, 0.1, 0.1, 0.1, 0.1}
	res := newResult(category.Math, dist)

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, "Dificuldade com Matemática", wire["categoria"])
	assert.Equal(t, 1.0, wire["categoria_num"])
	assert.Len(t, wire["probabilidades"], category.Count)
	assert.NotContains(t, wire, "degradado")

	var back Result
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, res, back)

	neutral, err := json.Marshal(Neutral())
	require.NoError(t, err)
	assert.Contains(t, string(neutral), `"degradado":true`)
}
