package app

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/chriscorrea/relatos/internal/batch"
	"github.com/chriscorrea/relatos/internal/category"
	"github.com/chriscorrea/relatos/internal/predict"
)

// OutputFormat defines the output format for results
type OutputFormat int

const (
	// plain text output format (default)
	Text OutputFormat = iota
	// JSON output format
	JSON
)

// String returns the string representation of the output
func (f OutputFormat) String() string {
	switch f {
	case Text:
		return "Text"
	case JSON:
		return "JSON"
	default:
		return "Unknown"
	}
}

// WritePredictions renders predictions in format. Text output lists the
// category, the ranked probabilities and the study suggestions for each
// source; JSON output is one array of results with their source.
func WritePredictions(w io.Writer, predictions []Prediction, format OutputFormat) error {
	if format == JSON {
		type entry struct {
			Source string         `json:"fonte"`
			Result predict.Result `json:"resultado"`
		}
		entries := make([]entry, len(predictions))
		for i, p := range predictions {
			entries[i] = entry{Source: p.Source, Result: p.Result}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	for i, p := range predictions {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if len(predictions) > 1 {
			fmt.Fprintf(w, "Fonte: %s\n", p.Source)
		}
		if err := writeResult(w, p.Result); err != nil {
			return err
		}
	}
	return nil
}

// WriteResult renders a single result in format.
func WriteResult(w io.Writer, res predict.Result, format OutputFormat) error {
	if format == JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return writeResult(w, res)
}

func writeResult(w io.Writer, res predict.Result) error {
	fmt.Fprintf(w, "Categoria: %s (%d)\n", res.Label, res.Category.Index())
	if res.Degraded {
		fmt.Fprintln(w, "Aviso: resultado neutro, o classificador falhou para este texto")
	}

	fmt.Fprintln(w, "Probabilidades:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, s := range res.Ranked() {
		fmt.Fprintf(tw, "  %s\t%.4f\n", s.Category.Label(), s.Probability)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !res.Degraded {
		fmt.Fprintln(w, "Sugestões:")
		for _, s := range res.Category.Suggestions() {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
	return nil
}

// WriteSummary renders the per-category counts of a batch run.
func WriteSummary(w io.Writer, counts []batch.Count) error {
	total := 0
	for _, c := range counts {
		total += c.Reports
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Relatos classificados: %d\n", total)
	for _, c := range counts {
		fmt.Fprintf(tw, "  %s\t%d\t%.1f%%\n", c.Category.Label(), c.Reports, 100*float64(c.Reports)/float64(total))
	}
	return tw.Flush()
}

// WriteCategories lists every category with its index and suggestions.
func WriteCategories(w io.Writer) error {
	for _, c := range category.All() {
		fmt.Fprintf(w, "%d  %s (%s)\n", c.Index(), c.Label(), c)
		for _, s := range c.Suggestions() {
			fmt.Fprintf(w, "     - %s\n", s)
		}
	}
	return nil
}
