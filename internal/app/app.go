// Package app contains the core application logic for the relatos CLI.
// It wires configuration, text resources, training, prediction, batch
// classification and the HTTP server, keeping cobra concerns in cmd/.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/chriscorrea/relatos/internal/batch"
	"github.com/chriscorrea/relatos/internal/cache"
	"github.com/chriscorrea/relatos/internal/config"
	"github.com/chriscorrea/relatos/internal/dataset"
	"github.com/chriscorrea/relatos/internal/evaluate"
	"github.com/chriscorrea/relatos/internal/extract"
	"github.com/chriscorrea/relatos/internal/fetch"
	"github.com/chriscorrea/relatos/internal/logger"
	"github.com/chriscorrea/relatos/internal/metrics"
	"github.com/chriscorrea/relatos/internal/predict"
	"github.com/chriscorrea/relatos/internal/server"
	"github.com/chriscorrea/relatos/internal/spinner"
	"github.com/chriscorrea/relatos/internal/textproc"
	"github.com/chriscorrea/relatos/internal/train"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ErrNoContent is returned when none of the given sources produced text.
var ErrNoContent = errors.New("no content extracted from any source")

// App runs relatos commands against one configuration.
type App struct {
	cfg     *config.Config
	res     *textproc.Resources
	fetcher *fetch.Fetcher
	stderr  io.Writer
	quiet   bool
	logger  *slog.Logger
}

// Option configures an App.
type Option func(*App)

// WithStdin replaces the reader used for the "-" source.
func WithStdin(r io.Reader) Option {
	return func(a *App) {
		a.fetcher = fetch.New(fetch.Config{
			MaxBytes: a.cfg.Fetch.MaxFileBytes,
			Timeout:  a.cfg.Fetch.Timeout,
			Stdin:    r,
		})
	}
}

// WithStderr sets where warnings and the progress spinner go.
func WithStderr(w io.Writer) Option {
	return func(a *App) { a.stderr = w }
}

// WithQuiet suppresses warnings and progress output.
func WithQuiet(quiet bool) Option {
	return func(a *App) { a.quiet = quiet }
}

// New loads the text resources named in cfg and returns an App.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	res, err := textproc.LoadResources(textproc.ResourceOptions{
		Language:      cfg.Text.Language,
		StopwordsFile: cfg.Text.StopwordsFile,
		RulesFile:     cfg.Text.RulesFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load text resources: %w", err)
	}

	a := &App{
		cfg: cfg,
		res: res,
		fetcher: fetch.New(fetch.Config{
			MaxBytes: cfg.Fetch.MaxFileBytes,
			Timeout:  cfg.Fetch.Timeout,
		}),
		stderr: os.Stderr,
		logger: logger.WithComponent("app"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Train fits a model on the CSV at source (or the built-in sample when
// source is empty) and saves it to the configured model path.
func (a *App) Train(ctx context.Context, source string) (*train.Result, error) {
	examples, err := a.loadExamples(ctx, source)
	if err != nil {
		return nil, err
	}

	proc, err := textproc.NewProcessor(a.res, a.cfg.Text.Stemmer)
	if err != nil {
		return nil, err
	}

	eval := a.cfg.Training.Evaluation
	policy, err := evaluate.NewPolicy(eval.Policy, evaluate.Options{
		Ratio:      eval.Ratio,
		Seed:       eval.Seed,
		Stratified: eval.Stratified,
		Folds:      eval.Folds,
	})
	if err != nil {
		return nil, err
	}

	trainer := train.New(proc, train.Config{
		MaxFeatures: a.cfg.Training.MaxFeatures,
		Alpha:       a.cfg.Training.Alpha,
		Policy:      policy,
		Workers:     a.cfg.Training.Workers,
	})

	result, err := spinner.Run(ctx, a.stderr, a.showProgress(), "Training model...", func(ctx context.Context) (*train.Result, error) {
		return trainer.Train(ctx, examples)
	})
	if err != nil {
		return nil, fmt.Errorf("training failed: %w", err)
	}

	if err := result.Model.SaveFile(a.cfg.Model.Path); err != nil {
		return nil, err
	}
	a.logger.Info("Model saved", "path", a.cfg.Model.Path, "modelID", result.Model.ID)
	return result, nil
}

func (a *App) loadExamples(ctx context.Context, source string) ([]dataset.Example, error) {
	if source == "" {
		a.logger.Debug("Using built-in sample dataset")
		return dataset.Sample(), nil
	}

	rc, err := a.fetcher.Open(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open training data: %w", err)
	}
	defer rc.Close()

	examples, err := dataset.ReadCSV(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read training data %q: %w", source, err)
	}
	a.logger.Debug("Training data loaded", "source", source, "examples", len(examples))
	return examples, nil
}

// Predictor builds a Predictor for the configured model. When Redis caching
// is enabled but unreachable the predictor runs uncached. The returned
// cleanup closes any cache connection.
func (a *App) Predictor(ctx context.Context) (*predict.Predictor, *cache.Redis, func()) {
	opts := []predict.Option{
		predict.WithResources(a.res),
		predict.WithWorkers(a.cfg.Predict.Workers),
	}

	var store *cache.Redis
	cleanup := func() {}
	if a.cfg.Redis.Enabled {
		r, err := cache.NewRedis(ctx, a.cfg.Redis)
		if err != nil {
			a.warn("prediction cache disabled: %v", err)
		} else {
			store = r
			opts = append(opts, predict.WithCache(cache.New[predict.Result](r, a.cfg.Redis.CacheTTL)))
			cleanup = func() { _ = r.Close() }
		}
	}

	return predict.New(predict.FileLoader(a.cfg.Model.Path), opts...), store, cleanup
}

// Prediction is the result for one input source.
type Prediction struct {
	Source string
	predict.Result
}

// Predict classifies each source separately. Sources that cannot be read are
// reported and skipped; an error is returned only when none succeed.
func (a *App) Predict(ctx context.Context, sources []string, selector string) ([]Prediction, error) {
	if len(sources) == 0 {
		sources = []string{"-"}
	}

	p, _, cleanup := a.Predictor(ctx)
	defer cleanup()
	if err := p.Ready(ctx); err != nil {
		return nil, err
	}

	var out []Prediction
	for _, source := range sources {
		text, err := a.processSource(ctx, source, selector)
		if err != nil {
			a.warn("failed to process source %q: %v", source, err)
			continue
		}
		res, err := p.Predict(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, Prediction{Source: source, Result: res})
	}

	if len(out) == 0 {
		return nil, ErrNoContent
	}
	return out, nil
}

// PredictText classifies a literal report.
func (a *App) PredictText(ctx context.Context, text string) (predict.Result, error) {
	p, _, cleanup := a.Predictor(ctx)
	defer cleanup()
	return p.Predict(ctx, text)
}

// processSource fetches a single source and reduces it to plain text.
func (a *App) processSource(ctx context.Context, source, selector string) (string, error) {
	content, err := a.fetcher.ReadAll(ctx, source)
	if err != nil {
		return "", fmt.Errorf("failed to fetch content: %w", err)
	}

	var baseURL *url.URL
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		baseURL, _ = url.Parse(source)
	}

	text, err := extract.PlainText(content, selector, baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no content extracted")
	}
	return text, nil
}

// Batch classifies the CSV at source and writes it to w with the category
// columns added. It returns the per-category summary.
func (a *App) Batch(ctx context.Context, source string, w io.Writer) ([]batch.Count, error) {
	rc, err := a.fetcher.Open(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open batch input: %w", err)
	}
	defer rc.Close()

	table, err := batch.Read(rc)
	if err != nil {
		return nil, err
	}

	p, _, cleanup := a.Predictor(ctx)
	defer cleanup()

	type classified struct {
		table   *batch.Table
		results []predict.Result
	}
	out, err := spinner.Run(ctx, a.stderr, a.showProgress(), fmt.Sprintf("Classifying %d reports...", len(table.Rows)),
		func(ctx context.Context) (classified, error) {
			t, results, err := batch.Classify(ctx, p, table)
			return classified{t, results}, err
		})
	if err != nil {
		return nil, err
	}

	if err := batch.Write(w, out.table); err != nil {
		return nil, err
	}
	return batch.Summary(out.results), nil
}

// Serve runs the HTTP API until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	p, store, cleanup := a.Predictor(ctx)
	defer cleanup()

	checker := server.NewChecker()
	if store != nil {
		checker.Register("cache", func(ctx context.Context) server.ComponentHealth {
			if err := store.Ping(ctx); err != nil {
				return server.ComponentHealth{Status: server.StatusDegraded, Message: err.Error()}
			}
			return server.ComponentHealth{Status: server.StatusUp}
		})
	}

	opts := server.Options{
		Checker:      checker,
		MaxBodyBytes: a.cfg.Server.MaxBodyBytes,
	}
	if a.cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts.Metrics = metrics.New(reg)
		opts.Gatherer = reg
	}

	// Load eagerly so a missing model is logged at startup; the server still
	// starts and reports unavailable until the artifact appears.
	_ = p.Ready(ctx)

	return server.New(p, opts).Run(ctx, a.cfg.Server)
}

func (a *App) showProgress() bool {
	return !a.quiet && spinner.IsTerminal(a.stderr)
}

func (a *App) warn(format string, args ...any) {
	if a.quiet {
		a.logger.Debug(fmt.Sprintf(format, args...))
		return
	}
	fmt.Fprintf(a.stderr, "Warning: "+format+"\n", args...)
}
