// Package predict serves classifications from a lazily loaded model.
//
// A Predictor loads its model on first use, rebuilds the exact text pipeline
// the model was trained with, and from then on answers Predict and
// PredictBatch without locking: the model and processor are read-only. Until
// a load succeeds every call reports ErrUnavailable, and the next call retries.
package predict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/chriscorrea/relatos/internal/cache"
	"github.com/chriscorrea/relatos/internal/category"
	"github.com/chriscorrea/relatos/internal/logger"
	"github.com/chriscorrea/relatos/internal/model"
	"github.com/chriscorrea/relatos/internal/textproc"
	"golang.org/x/sync/errgroup"
)

// ErrUnavailable means no valid model could be loaded.
var ErrUnavailable = errors.New("classifier unavailable")

// Loader provides the model to serve.
type Loader interface {
	Load(ctx context.Context) (*model.Model, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (*model.Model, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context) (*model.Model, error) {
	return f(ctx)
}

// FileLoader loads the artifact at path.
func FileLoader(path string) Loader {
	return LoaderFunc(func(context.Context) (*model.Model, error) {
		return model.LoadFile(path)
	})
}

// StaticLoader serves an already built model.
func StaticLoader(m *model.Model) Loader {
	return LoaderFunc(func(context.Context) (*model.Model, error) {
		if m == nil {
			return nil, fmt.Errorf("no model")
		}
		return m, nil
	})
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithResources sets the text resources used to rebuild the pipeline. The
// default is textproc.DefaultResources().
func WithResources(res *textproc.Resources) Option {
	return func(p *Predictor) { p.res = res }
}

// WithCache enables result caching.
func WithCache(c *cache.Cache[Result]) Option {
	return func(p *Predictor) { p.cache = c }
}

// WithWorkers bounds PredictBatch concurrency.
func WithWorkers(n int) Option {
	return func(p *Predictor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// Predictor classifies documents with a cached model.
type Predictor struct {
	loader  Loader
	res     *textproc.Resources
	cache   *cache.Cache[Result]
	workers int
	logger  *slog.Logger

	mu       sync.Mutex
	current  *session
	reported bool
}

// session is a loaded model with its matching pipeline.
type session struct {
	model *model.Model
	proc  *textproc.Processor
}

// New returns a Predictor. The model is not loaded until first use.
func New(loader Loader, opts ...Option) *Predictor {
	p := &Predictor{
		loader:  loader,
		workers: runtime.GOMAXPROCS(0),
		logger:  logger.WithComponent("predictor"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.res == nil {
		p.res = textproc.DefaultResources()
	}
	return p
}

// Ready loads the model if needed and reports whether predictions can be served.
func (p *Predictor) Ready(ctx context.Context) error {
	_, err := p.session(ctx)
	return err
}

// ModelID returns the ID of the loaded model, or "" when none is loaded.
func (p *Predictor) ModelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return ""
	}
	return p.current.model.ID
}

func (p *Predictor) session(ctx context.Context) (*session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		return p.current, nil
	}

	s, err := p.load(ctx)
	if err != nil {
		if !p.reported {
			p.logger.Error("Model load failed", "error", err)
			p.reported = true
		} else {
			p.logger.Debug("Model load retry failed", "error", err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if p.reported {
		p.logger.Info("Model load recovered", "modelID", s.model.ID)
	}
	p.current = s
	p.logger.Info("Model ready", "modelID", s.model.ID, "vocabulary", s.model.Vectorizer.Dim(),
		"stemmer", s.model.Pipeline.Stemmer)
	return s, nil
}

func (p *Predictor) load(ctx context.Context) (*session, error) {
	m, err := p.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	if m.Pipeline.Language != p.res.Language {
		return nil, fmt.Errorf("model was trained for %q text but resources are %q", m.Pipeline.Language, p.res.Language)
	}
	if m.Pipeline.Resources != "" && p.res.Fingerprint != "" && m.Pipeline.Resources != p.res.Fingerprint {
		return nil, fmt.Errorf("model was trained with stopwords and rules %s but resources are %s",
			m.Pipeline.Resources, p.res.Fingerprint)
	}
	proc, err := textproc.NewProcessor(p.res, m.Pipeline.Stemmer)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild text pipeline: %w", err)
	}
	return &session{model: m, proc: proc}, nil
}

// Predict classifies one document.
func (p *Predictor) Predict(ctx context.Context, text string) (Result, error) {
	s, err := p.session(ctx)
	if err != nil {
		return Result{}, err
	}
	return p.predictWith(ctx, s, text)
}

// PredictBatch classifies every document independently. The output has the
// same length and order as docs. A document that fails on its own gets a
// Neutral result; only an unavailable model or a cancelled context fails the
// whole batch.
func (p *Predictor) PredictBatch(ctx context.Context, docs []string) ([]Result, error) {
	s, err := p.session(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.predictSafely(gctx, s, i, doc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.logger.Debug("Batch classified", "documents", len(docs))
	return results, nil
}

func (p *Predictor) predictSafely(ctx context.Context, s *session, row int, doc string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("Document classification panicked", "row", row, "panic", r)
			res = Neutral()
		}
	}()

	res, err := p.predictWith(ctx, s, doc)
	if err != nil {
		p.logger.Warn("Document classification failed", "row", row, "error", err)
		return Neutral()
	}
	return res
}

func (p *Predictor) predictWith(ctx context.Context, s *session, text string) (Result, error) {
	processed := s.proc.Process(text)

	compute := func() (Result, error) {
		c, dist, err := s.model.Classify(processed)
		if err != nil {
			return Result{}, err
		}
		return newResult(c, dist), nil
	}

	if p.cache == nil {
		return compute()
	}
	res, _, err := p.cache.GetOrCompute(ctx, cache.Key(s.model.ID, processed), compute)
	return res, err
}

// Neutral is the low-confidence result given to documents that could not be
// classified: a uniform distribution, flagged as degraded.
func Neutral() Result {
	res := newResult(category.Uniform().Argmax(), category.Uniform())
	res.Degraded = true
	return res
}
