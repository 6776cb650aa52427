package category

import (
	"math"
	"sort"
)

// Distribution holds one probability per category, indexed by Category.
type Distribution [Count]float64

// Score pairs a category with its probability.
type Score struct {
	Category    Category
	Probability float64
}

// Uniform returns the distribution that assigns equal mass to every category.
func Uniform() Distribution {
	var d Distribution
	for i := range d {
		d[i] = 1.0 / Count
	}
	return d
}

// FromSlice copies probs into a Distribution. It reports false when probs
// does not have exactly Count entries.
func FromSlice(probs []float64) (Distribution, bool) {
	var d Distribution
	if len(probs) != Count {
		return d, false
	}
	copy(d[:], probs)
	return d, true
}

// Of returns the probability assigned to c.
func (d Distribution) Of(c Category) float64 {
	if !c.Valid() {
		return 0
	}
	return d[c]
}

// Sum returns the total probability mass.
func (d Distribution) Sum() float64 {
	var total float64
	for _, p := range d {
		total += p
	}
	return total
}

// Argmax returns the category holding the largest probability; ties go to
// the lowest index.
func (d Distribution) Argmax() Category {
	best := 0
	for i := 1; i < Count; i++ {
		if d[i] > d[best] {
			best = i
		}
	}
	return Category(best)
}

// Valid reports whether every entry lies in [0,1] and the entries sum to 1
// within tol.
func (d Distribution) Valid(tol float64) bool {
	for _, p := range d {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return false
		}
	}
	return math.Abs(d.Sum()-1) <= tol
}

// Ranked returns the categories ordered by descending probability. Equal
// probabilities keep index order.
func (d Distribution) Ranked() []Score {
	scores := make([]Score, Count)
	for i, p := range d {
		scores[i] = Score{Category: Category(i), Probability: p}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Probability > scores[j].Probability
	})
	return scores
}
