// Package dataset provides labeled training examples: the built-in sample
// corpus and a CSV reader for corpora labeled by school staff.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/chriscorrea/relatos/internal/category"
)

const (
	// TextColumn holds the report text.
	TextColumn = "texto"
	// LabelColumn holds the category, as an index, name or display label.
	LabelColumn = "categoria"
)

// ErrInvalidLabel is returned when a row's category cannot be parsed.
var ErrInvalidLabel = errors.New("invalid category label")

// Example is one labeled report.
type Example struct {
	Text     string
	Category category.Category
}

var sampleTexts = []string{
	"não consigo entender os textos longos das aulas",
	"sempre erro as contas de multiplicação e divisão",
	"fico muito nervoso quando tenho que apresentar trabalhos",
	"me distraio facilmente com qualquer barulho na sala",
	"não sei como organizar meu tempo para estudar todas as matérias",
	"sempre deixo os trabalhos para a última hora",
	"ler livros inteiros é muito difícil para mim",
	"equações de segundo grau são um mistério",
	"minha mente fica em branco nas provas mesmo sabendo a matéria",
	"perco o foco quando estudo em casa",
	"minha mochila e cadernos são uma bagunça",
	"nunca lembro dos prazos de entrega",
	"interpretação de texto é meu ponto fraco",
	"frações são complicadas demais",
	"tenho medo de tirar notas baixas",
	"não consigo prestar atenção em aulas longas",
	"meus materiais estão sempre desorganizados",
	"sempre preciso de lembretes para entregar trabalhos",
}

// Sample returns the simulated corpus of 18 reports, labeled with the six
// categories in order, three times over.
func Sample() []Example {
	examples := make([]Example, len(sampleTexts))
	for i, text := range sampleTexts {
		examples[i] = Example{Text: text, Category: category.Category(i % category.Count)}
	}
	return examples
}

// Labels returns the category of every example, in order.
func Labels(examples []Example) []category.Category {
	labels := make([]category.Category, len(examples))
	for i, ex := range examples {
		labels[i] = ex.Category
	}
	return labels
}

// ReadCSV parses a labeled corpus with a header row containing the texto and
// categoria columns. Other columns are ignored. Rows with an unparseable
// category fail the whole read with ErrInvalidLabel.
func ReadCSV(r io.Reader) ([]Example, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty corpus: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	textIdx, labelIdx := -1, -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch strings.ToLower(name) {
		case TextColumn:
			textIdx = i
		case LabelColumn:
			labelIdx = i
		}
	}
	if textIdx < 0 || labelIdx < 0 {
		return nil, fmt.Errorf("corpus header %v must contain %q and %q", header, TextColumn, LabelColumn)
	}

	var examples []Example
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", line, err)
		}

		var text, label string
		if textIdx < len(record) {
			text = record[textIdx]
		}
		if labelIdx < len(record) {
			label = record[labelIdx]
		}

		c, err := category.Parse(label)
		if err != nil {
			return nil, fmt.Errorf("%w on row %d: %v", ErrInvalidLabel, line, err)
		}
		examples = append(examples, Example{Text: text, Category: c})
	}

	slog.Debug("Read labeled corpus", "examples", len(examples))
	return examples, nil
}
