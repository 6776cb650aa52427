// Package category defines the fixed set of academic-difficulty categories
// a student report can be assigned to, along with the probability
// distribution returned for every prediction.
//
// The order of the enumeration is part of the model artifact format: index 0
// is always Reading and index 5 is always Deadlines.
package category

import (
	"fmt"
	"strconv"
	"strings"
)

// Category identifies one academic-difficulty class.
type Category int

const (
	// Reading covers difficulty understanding or interpreting texts
	Reading Category = iota
	// Math covers difficulty with calculations and mathematical concepts
	Math
	// Anxiety covers stress, nervousness and test anxiety
	Anxiety
	// Concentration covers distraction and lack of focus
	Concentration
	// Organization covers disorganized materials, time and routines
	Organization
	// Deadlines covers procrastination and missed due dates
	Deadlines
)

// Count is the number of categories.
const Count = 6

var names = [Count]string{
	"reading",
	"math",
	"anxiety",
	"concentration",
	"organization",
	"deadlines",
}

var labels = [Count]string{
	"Dificuldade com Leitura",
	"Dificuldade com Matemática",
	"Ansiedade/Estresse",
	"Falta de Concentração",
	"Problemas de Organização",
	"Dificuldade com Prazos",
}

// All returns every category in index order.
func All() []Category {
	all := make([]Category, Count)
	for i := range all {
		all[i] = Category(i)
	}
	return all
}

// Labels returns the display labels in index order.
func Labels() []string {
	out := make([]string, Count)
	copy(out, labels[:])
	return out
}

// Valid reports whether c is one of the defined categories.
func (c Category) Valid() bool {
	return c >= 0 && c < Count
}

// Index returns the numeric index of the category.
func (c Category) Index() int {
	return int(c)
}

// String returns the stable machine name of the category.
func (c Category) String() string {
	if !c.Valid() {
		return "unknown"
	}
	return names[c]
}

// Label returns the human-readable display label.
func (c Category) Label() string {
	if !c.Valid() {
		return "Desconhecida"
	}
	return labels[c]
}

// Parse resolves a category from its index ("0".."5"), machine name or
// display label. Matching on names and labels is case-insensitive.
func Parse(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty category")
	}

	if n, err := strconv.Atoi(s); err == nil {
		c := Category(n)
		if !c.Valid() {
			return 0, fmt.Errorf("category index %d out of range [0,%d)", n, Count)
		}
		return c, nil
	}

	for i := 0; i < Count; i++ {
		if strings.EqualFold(s, names[i]) || strings.EqualFold(s, labels[i]) {
			return Category(i), nil
		}
	}

	return 0, fmt.Errorf("unknown category %q", s)
}
