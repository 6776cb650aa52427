package evaluate

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/chriscorrea/relatos/internal/category"
)

// Metrics are the per-category scores of a Report.
type Metrics struct {
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report accumulates (truth, prediction) pairs. The zero value is ready to use.
type Report struct {
	Policy string

	// Confusion[truth][predicted] counts evaluated examples.
	Confusion [category.Count][category.Count]int
	total     int
	correct   int
}

// NewReport returns an empty report for the named policy.
func NewReport(policy string) *Report {
	return &Report{Policy: policy}
}

// Add records one evaluated example. Invalid categories are ignored.
func (r *Report) Add(truth, predicted category.Category) {
	if !truth.Valid() || !predicted.Valid() {
		return
	}
	r.Confusion[truth][predicted]++
	r.total++
	if truth == predicted {
		r.correct++
	}
}

// Total returns the number of evaluated examples.
func (r *Report) Total() int {
	return r.total
}

// Empty reports whether nothing was evaluated.
func (r *Report) Empty() bool {
	return r.total == 0
}

// Accuracy is the fraction of correct predictions, or 0 for an empty report.
func (r *Report) Accuracy() float64 {
	if r.total == 0 {
		return 0
	}
	return float64(r.correct) / float64(r.total)
}

// Metrics returns precision, recall and F1 for c. Undefined ratios are 0.
func (r *Report) Metrics(c category.Category) Metrics {
	if !c.Valid() {
		return Metrics{}
	}

	tp := r.Confusion[c][c]
	var predicted, actual int
	for other := 0; other < category.Count; other++ {
		predicted += r.Confusion[other][c]
		actual += r.Confusion[c][other]
	}

	m := Metrics{
		Precision: ratio(tp, predicted),
		Recall:    ratio(tp, actual),
		Support:   actual,
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

// MacroAverage averages the metrics of categories that have support.
func (r *Report) MacroAverage() Metrics {
	var avg Metrics
	classes := 0
	for _, c := range category.All() {
		m := r.Metrics(c)
		if m.Support == 0 {
			continue
		}
		classes++
		avg.Precision += m.Precision
		avg.Recall += m.Recall
		avg.F1 += m.F1
		avg.Support += m.Support
	}
	if classes > 0 {
		avg.Precision /= float64(classes)
		avg.Recall /= float64(classes)
		avg.F1 /= float64(classes)
	}
	return avg
}

// String renders a classification report table.
func (r *Report) String() string {
	if r.Empty() {
		return fmt.Sprintf("policy %s: no evaluation examples\n", r.Policy)
	}

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "\tprecision\trecall\tf1-score\tsupport\t")
	for _, c := range category.All() {
		m := r.Metrics(c)
		if m.Support == 0 && r.predictedCount(c) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%d\t\n", c.Label(), m.Precision, m.Recall, m.F1, m.Support)
	}
	fmt.Fprintln(w, "\t\t\t\t\t")
	fmt.Fprintf(w, "accuracy\t\t\t%.2f\t%d\t\n", r.Accuracy(), r.total)
	macro := r.MacroAverage()
	fmt.Fprintf(w, "macro avg\t%.2f\t%.2f\t%.2f\t%d\t\n", macro.Precision, macro.Recall, macro.F1, macro.Support)
	w.Flush()

	return fmt.Sprintf("policy %s, accuracy %.4f\n%s", r.Policy, r.Accuracy(), sb.String())
}

func (r *Report) predictedCount(c category.Category) int {
	n := 0
	for truth := 0; truth < category.Count; truth++ {
		n += r.Confusion[truth][c]
	}
	return n
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
