package predict

import (
	"encoding/json"
	"fmt"

	"github.com/chriscorrea/relatos/internal/category"
)

// Result is one classification.
type Result struct {
	Category     category.Category
	Label        string
	Distribution category.Distribution
	// Degraded marks a neutral fallback rather than a real prediction.
	Degraded bool
}

func newResult(c category.Category, dist category.Distribution) Result {
	return Result{Category: c, Label: c.Label(), Distribution: dist}
}

// Ranked returns the distribution ordered by probability, highest first.
func (r Result) Ranked() []category.Score {
	return r.Distribution.Ranked()
}

type wireProbability struct {
	Category    string  `json:"categoria"`
	Probability float64 `json:"probabilidade"`
}

type wireResult struct {
	Category      string            `json:"categoria"`
	Index         int               `json:"categoria_num"`
	Probabilities []wireProbability `json:"probabilidades"`
	Degraded      bool              `json:"degradado,omitempty"`
}

// MarshalJSON encodes the result with its probabilities in category order.
func (r Result) MarshalJSON() ([]byte, error) {
	w := wireResult{
		Category:      r.Label,
		Index:         r.Category.Index(),
		Probabilities: make([]wireProbability, 0, category.Count),
		Degraded:      r.Degraded,
	}
	for _, c := range category.All() {
		w.Probabilities = append(w.Probabilities, wireProbability{Category: c.Label(), Probability: r.Distribution.Of(c)})
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes what MarshalJSON produced.
func (r *Result) UnmarshalJSON(data []byte) error {
	var w wireResult
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	c := category.Category(w.Index)
	if !c.Valid() {
		return fmt.Errorf("category index %d out of range", w.Index)
	}
	if len(w.Probabilities) != category.Count {
		return fmt.Errorf("expected %d probabilities, got %d", category.Count, len(w.Probabilities))
	}

	var dist category.Distribution
	for i, p := range w.Probabilities {
		dist[i] = p.Probability
	}
	*r = Result{Category: c, Label: w.Category, Distribution: dist, Degraded: w.Degraded}
	return nil
}
