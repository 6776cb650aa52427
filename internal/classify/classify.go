// Package classify provides a multinomial Naive Bayes text classifier.
//
// The classifier learns per-class term likelihoods and class priors from
// weighted feature vectors (see package tfidf) and scores new vectors by
// summing log-likelihoods into a posterior distribution over classes.
// Likelihoods use additive (Laplace) smoothing so a term never seen in a
// class cannot zero out that class.
//
// A fitted NaiveBayes is immutable; Predict is safe for concurrent use.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/chriscorrea/relatos/internal/tfidf"
	"golang.org/x/sync/errgroup"
)

// DefaultAlpha is the Laplace smoothing constant.
const DefaultAlpha = 1.0

var (
	// ErrDimensionMismatch means a vector was not produced by the vectorizer
	// the classifier was fitted with.
	ErrDimensionMismatch = errors.New("feature vector dimension mismatch")
	// ErrNoExamples is returned by Fit when there is nothing to learn from.
	ErrNoExamples = errors.New("no training examples")
)

// NaiveBayes is a fitted multinomial Naive Bayes model.
type NaiveBayes struct {
	priors      []float64   // P(c)
	likelihoods [][]float64 // P(t|c), [class][term]

	logPriors      []float64
	logLikelihoods [][]float64
}

// New assembles a classifier from priors and a [class][term] likelihood table.
func New(priors []float64, likelihoods [][]float64) (*NaiveBayes, error) {
	if len(priors) == 0 {
		return nil, fmt.Errorf("classifier needs at least one class")
	}
	if len(likelihoods) != len(priors) {
		return nil, fmt.Errorf("%d priors but %d likelihood rows", len(priors), len(likelihoods))
	}

	dim := len(likelihoods[0])
	nb := &NaiveBayes{
		priors:         make([]float64, len(priors)),
		likelihoods:    make([][]float64, len(priors)),
		logPriors:      make([]float64, len(priors)),
		logLikelihoods: make([][]float64, len(priors)),
	}

	var priorSum float64
	for c, p := range priors {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, fmt.Errorf("prior %d out of range: %v", c, p)
		}
		priorSum += p
		nb.priors[c] = p
		nb.logPriors[c] = math.Log(p) // -Inf for a class with no examples

		row := likelihoods[c]
		if len(row) != dim {
			return nil, fmt.Errorf("likelihood row %d has %d terms, want %d", c, len(row), dim)
		}
		nb.likelihoods[c] = make([]float64, dim)
		nb.logLikelihoods[c] = make([]float64, dim)
		for t, l := range row {
			if math.IsNaN(l) || l <= 0 || l > 1 {
				return nil, fmt.Errorf("likelihood [%d][%d] out of range: %v", c, t, l)
			}
			nb.likelihoods[c][t] = l
			nb.logLikelihoods[c][t] = math.Log(l)
		}
	}
	if math.Abs(priorSum-1) > 1e-6 {
		return nil, fmt.Errorf("priors sum to %v, want 1", priorSum)
	}

	return nb, nil
}

// Fit learns priors and smoothed likelihoods.
//
// Parameters:
//   - ctx: cancels the per-class accumulation
//   - vectors: training feature vectors, all of the same length
//   - labels: class index of each vector, in [0, numClasses)
//   - numClasses: number of classes, including ones with no examples
//   - alpha: additive smoothing constant (use DefaultAlpha)
//
// Classes are accumulated independently and concurrently.
func Fit(ctx context.Context, vectors []tfidf.Vector, labels []int, numClasses int, alpha float64) (*NaiveBayes, error) {
	if len(vectors) == 0 {
		return nil, ErrNoExamples
	}
	if len(vectors) != len(labels) {
		return nil, fmt.Errorf("%d vectors but %d labels", len(vectors), len(labels))
	}
	if numClasses <= 0 {
		return nil, fmt.Errorf("invalid class count %d", numClasses)
	}
	if alpha <= 0 {
		return nil, fmt.Errorf("smoothing constant must be positive, got %v", alpha)
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d entries, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
		if labels[i] < 0 || labels[i] >= numClasses {
			return nil, fmt.Errorf("label %d of vector %d out of range [0,%d)", labels[i], i, numClasses)
		}
	}

	priors := make([]float64, numClasses)
	likelihoods := make([][]float64, numClasses)

	g, ctx := errgroup.WithContext(ctx)
	for c := 0; c < numClasses; c++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			sums := make([]float64, dim)
			var total float64
			count := 0
			for i, v := range vectors {
				if labels[i] != c {
					continue
				}
				count++
				for t, w := range v {
					sums[t] += w
					total += w
				}
			}

			denominator := total + alpha*float64(dim)
			row := make([]float64, dim)
			for t := range row {
				row[t] = (sums[t] + alpha) / denominator
			}

			priors[c] = float64(count) / float64(len(vectors))
			likelihoods[c] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Debug("Naive Bayes fitted", "examples", len(vectors), "classes", numClasses, "features", dim, "alpha", alpha)
	return New(priors, likelihoods)
}

// Classes returns the number of classes.
func (nb *NaiveBayes) Classes() int {
	return len(nb.priors)
}

// Dim returns the expected feature vector length.
func (nb *NaiveBayes) Dim() int {
	return len(nb.likelihoods[0])
}

// Priors returns a copy of the class priors.
func (nb *NaiveBayes) Priors() []float64 {
	out := make([]float64, len(nb.priors))
	copy(out, nb.priors)
	return out
}

// Likelihoods returns a copy of the [class][term] likelihood table.
func (nb *NaiveBayes) Likelihoods() [][]float64 {
	out := make([][]float64, len(nb.likelihoods))
	for c, row := range nb.likelihoods {
		out[c] = make([]float64, len(row))
		copy(out[c], row)
	}
	return out
}

// LogScores returns the unnormalized log posterior of every class:
// log P(c) + Σ v[t]·log P(t|c) over the nonzero entries of v.
func (nb *NaiveBayes) LogScores(v tfidf.Vector) ([]float64, error) {
	if len(v) != nb.Dim() {
		return nil, fmt.Errorf("%w: got %d entries, classifier expects %d", ErrDimensionMismatch, len(v), nb.Dim())
	}

	scores := make([]float64, len(nb.priors))
	for c := range scores {
		score := nb.logPriors[c]
		if math.IsInf(score, -1) {
			scores[c] = score
			continue
		}
		row := nb.logLikelihoods[c]
		for t, w := range v {
			if w == 0 {
				continue
			}
			score += w * row[t]
		}
		scores[c] = score
	}
	return scores, nil
}

// Predict returns the most probable class and the posterior distribution.
// Ties go to the lowest class index.
func (nb *NaiveBayes) Predict(v tfidf.Vector) (int, []float64, error) {
	scores, err := nb.LogScores(v)
	if err != nil {
		return 0, nil, err
	}
	best := Argmax(scores)
	return best, Softmax(scores), nil
}

// Argmax returns the index of the largest value; ties go to the lowest index.
func Argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

// Softmax converts log scores into probabilities. The maximum is subtracted
// before exponentiating; -Inf scores get probability 0.
func Softmax(scores []float64) []float64 {
	probs := make([]float64, len(scores))
	if len(scores) == 0 {
		return probs
	}

	maxScore := scores[Argmax(scores)]
	if math.IsInf(maxScore, -1) {
		for i := range probs {
			probs[i] = 1 / float64(len(probs))
		}
		return probs
	}

	var sum float64
	for i, s := range scores {
		probs[i] = math.Exp(s - maxScore)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
