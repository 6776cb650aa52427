// Package evaluate splits labeled examples into training and evaluation
// subsets and scores predictions against the held-out labels.
//
// A Policy decides the split methodology. The trainer fits on each Split's
// Train indices only and scores on its Eval indices, so the policy is the one
// place that controls what the model is allowed to see.
package evaluate

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/chriscorrea/relatos/internal/category"
)

// Policy names accepted by NewPolicy.
const (
	PolicyHoldout = "holdout"
	PolicyKFold   = "kfold"
	PolicyNone    = "none"
)

// Defaults match a classic 80/20 split with a fixed seed.
const (
	DefaultRatio = 0.2
	DefaultSeed  = 42
	DefaultFolds = 5
)

// ErrInvalidPolicy is returned for unknown policy names or bad parameters.
var ErrInvalidPolicy = errors.New("invalid evaluation policy")

// Split is one train/eval partition, as indices into the example slice.
type Split struct {
	Train []int
	Eval  []int
}

// Policy produces the splits used during training.
type Policy interface {
	Name() string
	Splits(labels []category.Category) ([]Split, error)
}

// Options parameterize NewPolicy. Zero values take the defaults.
type Options struct {
	Ratio      float64
	Seed       uint64
	Stratified bool
	Folds      int
}

// NewPolicy builds the policy called name.
func NewPolicy(name string, opts Options) (Policy, error) {
	if opts.Ratio == 0 {
		opts.Ratio = DefaultRatio
	}
	if opts.Seed == 0 {
		opts.Seed = DefaultSeed
	}
	if opts.Folds == 0 {
		opts.Folds = DefaultFolds
	}

	switch name {
	case PolicyHoldout, "":
		if opts.Ratio <= 0 || opts.Ratio >= 1 {
			return nil, fmt.Errorf("%w: holdout ratio %v must be in (0,1)", ErrInvalidPolicy, opts.Ratio)
		}
		return Holdout{Ratio: opts.Ratio, Seed: opts.Seed, Stratified: opts.Stratified}, nil
	case PolicyKFold:
		if opts.Folds < 2 {
			return nil, fmt.Errorf("%w: kfold needs at least 2 folds, got %d", ErrInvalidPolicy, opts.Folds)
		}
		return KFold{K: opts.Folds, Seed: opts.Seed}, nil
	case PolicyNone:
		return None{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown policy %q", ErrInvalidPolicy, name)
	}
}

// Holdout sets aside a fraction of the examples for evaluation.
type Holdout struct {
	Ratio      float64
	Seed       uint64
	Stratified bool
}

// Name implements Policy.
func (h Holdout) Name() string { return PolicyHoldout }

// Splits returns a single split. The evaluation share is rounded up, and at
// least one example always stays in training.
func (h Holdout) Splits(labels []category.Category) ([]Split, error) {
	n := len(labels)
	if n == 0 {
		return nil, fmt.Errorf("%w: nothing to split", ErrInvalidPolicy)
	}
	if h.Ratio <= 0 || h.Ratio >= 1 {
		return nil, fmt.Errorf("%w: holdout ratio %v must be in (0,1)", ErrInvalidPolicy, h.Ratio)
	}

	rng := newRand(h.Seed)
	var eval []int

	if h.Stratified {
		for _, group := range groupByCategory(labels) {
			rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
			take := int(math.Round(h.Ratio * float64(len(group))))
			take = min(take, len(group)-1)
			eval = append(eval, group[:max(take, 0)]...)
		}
	} else {
		perm := rng.Perm(n)
		take := min(int(math.Ceil(h.Ratio*float64(n))), n-1)
		eval = perm[:take]
	}

	return []Split{complement(n, eval)}, nil
}

// KFold partitions the examples into K stratified folds; each fold is the
// evaluation set of one split.
type KFold struct {
	K    int
	Seed uint64
}

// Name implements Policy.
func (k KFold) Name() string { return PolicyKFold }

// Splits deals the shuffled members of every category round-robin across
// folds, continuing the rotation between categories so fold sizes differ by
// at most one.
func (k KFold) Splits(labels []category.Category) ([]Split, error) {
	n := len(labels)
	if k.K < 2 {
		return nil, fmt.Errorf("%w: kfold needs at least 2 folds, got %d", ErrInvalidPolicy, k.K)
	}
	if n < k.K {
		return nil, fmt.Errorf("%w: %d examples cannot fill %d folds", ErrInvalidPolicy, n, k.K)
	}

	rng := newRand(k.Seed)
	folds := make([][]int, k.K)
	next := 0
	for _, group := range groupByCategory(labels) {
		rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
		for _, idx := range group {
			folds[next%k.K] = append(folds[next%k.K], idx)
			next++
		}
	}

	splits := make([]Split, k.K)
	for i, fold := range folds {
		splits[i] = complement(n, fold)
	}
	return splits, nil
}

// None trains on every example and evaluates nothing.
type None struct{}

// Name implements Policy.
func (None) Name() string { return PolicyNone }

// Splits returns one split with every index in Train.
func (None) Splits(labels []category.Category) ([]Split, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: nothing to split", ErrInvalidPolicy)
	}
	return []Split{complement(len(labels), nil)}, nil
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// groupByCategory returns the indices of each category in category order.
func groupByCategory(labels []category.Category) [][]int {
	groups := make([][]int, category.Count)
	for i, c := range labels {
		if c.Valid() {
			groups[c] = append(groups[c], i)
		}
	}
	return groups
}

// complement builds a split whose Eval is eval (sorted) and whose Train is
// every other index in [0,n).
func complement(n int, eval []int) Split {
	held := make(map[int]bool, len(eval))
	sorted := slices.Clone(eval)
	slices.Sort(sorted)
	for _, i := range sorted {
		held[i] = true
	}

	train := make([]int, 0, n-len(sorted))
	for i := 0; i < n; i++ {
		if !held[i] {
			train = append(train, i)
		}
	}
	return Split{Train: train, Eval: sorted}
}
