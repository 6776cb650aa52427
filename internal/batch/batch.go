// Package batch classifies a table of reports.
//
// Input is CSV with a header row that must contain a texto column. Output is
// the same table, in the same row order, with the categoria (display label)
// and categoria_num (index) columns appended or overwritten.
package batch

import (
	"cmp"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/chriscorrea/relatos/internal/category"
	"github.com/chriscorrea/relatos/internal/predict"
)

// Column names.
const (
	TextColumn  = "texto"
	LabelColumn = "categoria"
	IndexColumn = "categoria_num"
)

// ErrMissingColumn is returned when the input has no texto column.
var ErrMissingColumn = errors.New("missing required column " + TextColumn)

// Predictor classifies documents in order.
type Predictor interface {
	PredictBatch(ctx context.Context, docs []string) ([]predict.Result, error)
}

// Table is a parsed CSV table.
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of the named column, or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Texts returns the texto cell of every row. Short rows yield "".
func (t *Table) Texts() []string {
	idx := t.Column(TextColumn)
	texts := make([]string, len(t.Rows))
	if idx < 0 {
		return texts
	}
	for i, row := range t.Rows {
		if idx < len(row) {
			texts[i] = row[idx]
		}
	}
	return texts
}

// Read parses CSV from r and checks for the texto column before returning
// any rows. A leading byte order mark and surrounding spaces in header names
// are ignored.
func Read(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: input is empty", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		header[i] = strings.TrimSpace(h)
	}

	t := &Table{Header: header}
	if t.Column(TextColumn) < 0 {
		return nil, fmt.Errorf("%w (columns: %s)", ErrMissingColumn, strings.Join(header, ", "))
	}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", line, err)
		}
		t.Rows = append(t.Rows, record)
	}
	return t, nil
}

// Classify predicts every row of t and returns a new table with the label and
// index columns set. Row count and order are preserved.
func Classify(ctx context.Context, p Predictor, t *Table) (*Table, []predict.Result, error) {
	if t.Column(TextColumn) < 0 {
		return nil, nil, ErrMissingColumn
	}

	results, err := p.PredictBatch(ctx, t.Texts())
	if err != nil {
		return nil, nil, err
	}
	if len(results) != len(t.Rows) {
		return nil, nil, fmt.Errorf("predictor returned %d results for %d rows", len(results), len(t.Rows))
	}

	out := &Table{Header: append([]string(nil), t.Header...)}
	labelIdx := out.Column(LabelColumn)
	if labelIdx < 0 {
		out.Header = append(out.Header, LabelColumn)
		labelIdx = len(out.Header) - 1
	}
	indexIdx := out.Column(IndexColumn)
	if indexIdx < 0 {
		out.Header = append(out.Header, IndexColumn)
		indexIdx = len(out.Header) - 1
	}

	out.Rows = make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		cells := make([]string, max(len(out.Header), len(row)))
		copy(cells, row)
		cells[labelIdx] = results[i].Label
		cells[indexIdx] = strconv.Itoa(results[i].Category.Index())
		out.Rows[i] = cells
	}
	return out, results, nil
}

// Write emits t as CSV.
func Write(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := writer.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

// Count is the number of reports assigned to one category.
type Count struct {
	Category category.Category
	Reports  int
}

// Summary counts results per category, most frequent first. Ties keep
// category order, and categories with no reports are omitted.
func Summary(results []predict.Result) []Count {
	var totals [category.Count]int
	for _, r := range results {
		if r.Category.Valid() {
			totals[r.Category]++
		}
	}

	var counts []Count
	for _, c := range category.All() {
		if totals[c] > 0 {
			counts = append(counts, Count{Category: c, Reports: totals[c]})
		}
	}
	slices.SortStableFunc(counts, func(a, b Count) int {
		return cmp.Compare(b.Reports, a.Reports)
	})
	return counts
}
