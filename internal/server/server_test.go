package server

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chriscorrea/relatos/internal/category"
	"github.com/chriscorrea/relatos/internal/dataset"
	"github.com/chriscorrea/relatos/internal/evaluate"
	"github.com/chriscorrea/relatos/internal/metrics"
	"github.com/chriscorrea/relatos/internal/model"
	"github.com/chriscorrea/relatos/internal/predict"
	"github.com/chriscorrea/relatos/internal/textproc"
	"github.com/chriscorrea/relatos/internal/train"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *metrics.Metrics) {
	t.Helper()

	proc, err := textproc.NewProcessor(textproc.DefaultResources(), textproc.StemmerRules)
	require.NoError(t, err)
	result, err := train.New(proc, train.Config{Policy: evaluate.None{}}).Train(context.Background(), dataset.Sample())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	s := New(predict.New(predict.StaticLoader(result.Model)), Options{Metrics: m, Gatherer: reg})
	return s, m
}

func unavailableServer() *Server {
	loader := predict.LoaderFunc(func(context.Context) (*model.Model, error) {
		return nil, errors.New("no artifact")
	})
	return New(predict.New(loader), Options{})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestPredictEndpoint(t *testing.T) {
	s, m := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/predict", `{"texto": "não consigo resolver equações de segundo grau"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Categoria      string `json:"categoria"`
		CategoriaNum   int    `json:"categoria_num"`
		Probabilidades []struct {
			Categoria     string  `json:"categoria"`
			Probabilidade float64 `json:"probabilidade"`
		} `json:"probabilidades"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, category.Math.Label(), body.Categoria)
	assert.Equal(t, 1, body.CategoriaNum)
	require.Len(t, body.Probabilidades, category.Count)

	var sum float64
	for _, p := range body.Probabilidades {
		sum += p.Probabilidade
	}
	assert.InDelta(t, 1.0, sum, 1e-6)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictionsTotal.WithLabelValues("math")))
}

func TestPredictEndpointLooseInput(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty text", `{"texto": ""}`, http.StatusOK},
		{"missing field", `{}`, http.StatusOK},
		{"number instead of text", `{"texto": 42}`, http.StatusOK},
		{"null text", `{"texto": null}`, http.StatusOK},
		{"malformed json", `{"texto": `, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s.Handler(), http.MethodPost, "/api/v1/predict", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestBatchEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	input := "id,texto\n1,frações são complicadas\n2,\n3,tenho medo de tirar notas baixas\n"
	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/batch", input)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4, "header plus three rows")
	assert.Equal(t, []string{"id", "texto", "categoria", "categoria_num"}, records[0])
	for i, row := range records[1:] {
		assert.Equal(t, []string{"1", "2", "3"}[i], row[0], "row order is preserved")
		assert.Contains(t, category.Labels(), row[2])
	}
	assert.Equal(t, category.Math.Label(), records[1][2])
}

func TestBatchEndpointMissingColumn(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/batch", "text\nalgo\n")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "texto")
}

func TestUnavailable(t *testing.T) {
	s := unavailableServer()

	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/predict", `{"texto": "algo"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "classifier unavailable")

	rec = do(t, s.Handler(), http.MethodPost, "/api/v1/batch", "texto\nalgo\n")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, s.Handler(), http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, s.Handler(), http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, rec.Code, "the process stays alive without a model")
}

func TestHealthReady(t *testing.T) {
	s, m := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusUp, report.Status)
	assert.Equal(t, StatusUp, report.Components["classifier"].Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelReady))
}

func TestDegradedCheckStaysReady(t *testing.T) {
	checker := NewChecker()
	checker.Register("cache", func(context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusDegraded, Message: "redis unreachable"}
	})
	s, _ := newTestServer(t)
	s = New(s.predictor, Options{Checker: checker})

	rec := do(t, s.Handler(), http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"degraded"`)
}

func TestCategoriesEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []categoryInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, category.Count)
	for i, info := range infos {
		assert.Equal(t, i, info.Index)
		assert.NotEmpty(t, info.Suggestions)
	}
	assert.Equal(t, "deadlines", infos[5].Name)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	do(t, s.Handler(), http.MethodGet, "/api/v1/categories", "")
	do(t, s.Handler(), http.MethodGet, "/no/such/path", "")

	rec := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `path="GET /api/v1/categories"`)
	assert.Contains(t, body, `path="unmatched"`)
	assert.NotContains(t, body, "/no/such/path")
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/predict", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
