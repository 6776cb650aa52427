// Package train fits a Model from labeled examples.
//
// Training runs the text pipeline over every example, asks the evaluation
// policy for train/eval splits, fits the vectorizer and classifier on training
// indices only, and scores the held-out examples. Evaluation results are
// reported but never fed back into the model.
package train

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/chriscorrea/relatos/internal/category"
	"github.com/chriscorrea/relatos/internal/classify"
	"github.com/chriscorrea/relatos/internal/dataset"
	"github.com/chriscorrea/relatos/internal/evaluate"
	"github.com/chriscorrea/relatos/internal/logger"
	"github.com/chriscorrea/relatos/internal/model"
	"github.com/chriscorrea/relatos/internal/textproc"
	"github.com/chriscorrea/relatos/internal/tfidf"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxFeatures caps the vocabulary size.
const DefaultMaxFeatures = 1000

// Config controls a training run. Zero values take the defaults.
type Config struct {
	MaxFeatures int
	Alpha       float64
	Policy      evaluate.Policy
	Workers     int
}

// Result is the outcome of a training run.
type Result struct {
	Model  *model.Model
	Report *evaluate.Report
	// TrainSize is the number of examples the emitted model was fitted on.
	TrainSize int
}

// Trainer fits models with a fixed text pipeline.
type Trainer struct {
	proc   *textproc.Processor
	cfg    Config
	logger *slog.Logger
}

// New returns a Trainer that processes documents with proc.
func New(proc *textproc.Processor, cfg Config) *Trainer {
	if cfg.MaxFeatures <= 0 {
		cfg.MaxFeatures = DefaultMaxFeatures
	}
	if cfg.Alpha <= 0 {
		cfg.Alpha = classify.DefaultAlpha
	}
	if cfg.Policy == nil {
		cfg.Policy = evaluate.Holdout{Ratio: evaluate.DefaultRatio, Seed: evaluate.DefaultSeed}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Trainer{
		proc:   proc,
		cfg:    cfg,
		logger: logger.WithComponent("trainer"),
	}
}

// Train fits a model on examples.
//
// With a single split (holdout, none) the emitted model is the one fitted on
// that split's training indices. With several splits (kfold) the metrics are
// pooled across folds and the emitted model is fitted on every example.
func (t *Trainer) Train(ctx context.Context, examples []dataset.Example) (*Result, error) {
	if len(examples) == 0 {
		return nil, classify.ErrNoExamples
	}

	docs, err := t.processAll(ctx, examples)
	if err != nil {
		return nil, err
	}
	labels := dataset.Labels(examples)
	for i, c := range labels {
		if !c.Valid() {
			return nil, fmt.Errorf("example %d: %w", i, dataset.ErrInvalidLabel)
		}
	}

	splits, err := t.cfg.Policy.Splits(labels)
	if err != nil {
		return nil, fmt.Errorf("failed to split examples: %w", err)
	}

	report := evaluate.NewReport(t.cfg.Policy.Name())
	var last *model.Model
	for i, split := range splits {
		m, err := t.fit(ctx, docs, labels, split.Train)
		if err != nil {
			return nil, fmt.Errorf("split %d: %w", i, err)
		}
		for _, idx := range split.Eval {
			predicted, _, err := m.Classify(docs[idx])
			if err != nil {
				return nil, fmt.Errorf("split %d: failed to score example %d: %w", i, idx, err)
			}
			report.Add(labels[idx], predicted)
		}
		last = m
		t.logger.Debug("Split evaluated", "split", i, "train", len(split.Train), "eval", len(split.Eval))
	}

	result := &Result{Report: report}
	if len(splits) == 1 {
		result.Model = last
		result.TrainSize = len(splits[0].Train)
	} else {
		all := make([]int, len(examples))
		for i := range all {
			all[i] = i
		}
		m, err := t.fit(ctx, docs, labels, all)
		if err != nil {
			return nil, err
		}
		result.Model = m
		result.TrainSize = len(all)
	}

	t.logger.Info("Training complete",
		"policy", report.Policy,
		"examples", len(examples),
		"trainSize", result.TrainSize,
		"evaluated", report.Total(),
		"accuracy", report.Accuracy(),
		"vocabulary", result.Model.Vectorizer.Dim(),
		"modelID", result.Model.ID)
	return result, nil
}

// fit builds a model from the documents at indices only.
func (t *Trainer) fit(ctx context.Context, docs []string, labels []category.Category, indices []int) (*model.Model, error) {
	if len(indices) == 0 {
		return nil, classify.ErrNoExamples
	}

	corpus := make([]string, len(indices))
	classes := make([]int, len(indices))
	for i, idx := range indices {
		corpus[i] = docs[idx]
		classes[i] = labels[idx].Index()
	}

	table, err := tfidf.Fit(corpus, t.cfg.MaxFeatures)
	if err != nil {
		return nil, fmt.Errorf("failed to fit vectorizer: %w", err)
	}
	nb, err := classify.Fit(ctx, table.TransformAll(corpus), classes, category.Count, t.cfg.Alpha)
	if err != nil {
		return nil, fmt.Errorf("failed to fit classifier: %w", err)
	}
	return model.New(t.proc.Spec(), table, nb)
}

// processAll runs the text pipeline over every example, keeping input order.
func (t *Trainer) processAll(ctx context.Context, examples []dataset.Example) ([]string, error) {
	docs := make([]string, len(examples))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.Workers)
	for i, ex := range examples {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			docs[i] = t.proc.Process(ex.Text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}
