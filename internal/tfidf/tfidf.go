// Package tfidf provides TF-IDF (Term Frequency-Inverse Document Frequency) feature vectors.
//
// This package fits a closed vocabulary over a corpus of processed documents and
// turns any later document into a fixed-length, L2-normalized weight vector
// indexed by that vocabulary.
//
// The TF-IDF weighting combines:
//   - Term Frequency (TF): raw count of a term in the document
//   - Inverse Document Frequency (IDF): ln((1 + N) / (1 + df)) + 1, smoothed so
//     every weight stays positive
//
// Usage Example:
//
//	table, err := tfidf.Fit(processedDocs, 1000)
//	vec := table.Transform("consig resolv equaç")
//
// Documents are expected to be already processed (see package textproc):
// tokens are taken by splitting on whitespace, with no further filtering.
package tfidf

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
)

// ErrEmptyCorpus is returned when Fit finds no terms at all.
var ErrEmptyCorpus = errors.New("corpus has no terms")

// Vector is a dense feature vector indexed by a Vocabulary.
type Vector []float64

// Norm returns the Euclidean norm of v.
func (v Vector) Norm() float64 {
	var sum float64
	for _, w := range v {
		sum += w * w
	}
	return math.Sqrt(sum)
}

// NonZero returns the number of nonzero entries.
func (v Vector) NonZero() int {
	n := 0
	for _, w := range v {
		if w != 0 {
			n++
		}
	}
	return n
}

// Vocabulary maps terms to vector indices. It is closed once built.
type Vocabulary struct {
	terms []string
	index map[string]int
}

// NewVocabulary builds a vocabulary whose index order follows terms.
// Duplicate terms are an error.
func NewVocabulary(terms []string) (*Vocabulary, error) {
	v := &Vocabulary{
		terms: make([]string, len(terms)),
		index: make(map[string]int, len(terms)),
	}
	copy(v.terms, terms)
	for i, term := range terms {
		if _, dup := v.index[term]; dup {
			return nil, fmt.Errorf("duplicate vocabulary term %q", term)
		}
		v.index[term] = i
	}
	return v, nil
}

// Len returns the number of terms.
func (v *Vocabulary) Len() int {
	return len(v.terms)
}

// Index returns the index of term and whether it is known.
func (v *Vocabulary) Index(term string) (int, bool) {
	i, ok := v.index[term]
	return i, ok
}

// Terms returns a copy of the terms in index order.
func (v *Vocabulary) Terms() []string {
	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out
}

// Table holds a fitted vocabulary and its IDF weights.
type Table struct {
	vocab *Vocabulary
	idf   []float64
}

// NewTable assembles a Table from previously fitted parts, for example when
// restoring a model artifact.
func NewTable(terms []string, idf []float64) (*Table, error) {
	if len(terms) != len(idf) {
		return nil, fmt.Errorf("vocabulary has %d terms but idf has %d weights", len(terms), len(idf))
	}
	vocab, err := NewVocabulary(terms)
	if err != nil {
		return nil, err
	}
	weights := make([]float64, len(idf))
	for i, w := range idf {
		if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
			return nil, fmt.Errorf("invalid idf weight %v for term %q", w, terms[i])
		}
		weights[i] = w
	}
	return &Table{vocab: vocab, idf: weights}, nil
}

// Fit builds the vocabulary and IDF weights from corpus.
//
// Parameters:
//   - corpus: processed documents (space-separated terms)
//   - maxFeatures: vocabulary size cap; zero or negative means no cap
//
// Returns:
//   - *Table: fitted vocabulary and IDF weights
//   - error: ErrEmptyCorpus when no document contains a term
//
// When the corpus has more distinct terms than maxFeatures, the terms with the
// highest total count are kept; ties go to the term that occurred first.
// Retained terms are indexed in first-occurrence order.
func Fit(corpus []string, maxFeatures int) (*Table, error) {
	type termStats struct {
		first int // first-occurrence rank
		count int // total occurrences in the corpus
		df    int // documents containing the term
	}

	stats := make(map[string]*termStats)
	var order []string

	for _, doc := range corpus {
		seen := make(map[string]bool)
		for _, term := range tokenize(doc) {
			st, ok := stats[term]
			if !ok {
				st = &termStats{first: len(order)}
				stats[term] = st
				order = append(order, term)
			}
			st.count++
			if !seen[term] {
				seen[term] = true
				st.df++
			}
		}
	}

	if len(order) == 0 {
		return nil, ErrEmptyCorpus
	}

	retained := order
	if maxFeatures > 0 && len(order) > maxFeatures {
		ranked := make([]string, len(order))
		copy(ranked, order)
		sort.SliceStable(ranked, func(i, j int) bool {
			return stats[ranked[i]].count > stats[ranked[j]].count
		})
		ranked = ranked[:maxFeatures]

		// restore first-occurrence order among the survivors
		sort.Slice(ranked, func(i, j int) bool {
			return stats[ranked[i]].first < stats[ranked[j]].first
		})
		retained = ranked

		slog.Debug("Vocabulary capped", "distinctTerms", len(order), "maxFeatures", maxFeatures)
	}

	nDocs := float64(len(corpus))
	idf := make([]float64, len(retained))
	for i, term := range retained {
		idf[i] = math.Log((1+nDocs)/(1+float64(stats[term].df))) + 1
	}

	slog.Debug("TF-IDF table fitted", "documents", len(corpus), "vocabulary", len(retained))
	return NewTable(retained, idf)
}

// Vocabulary returns the fitted vocabulary.
func (t *Table) Vocabulary() *Vocabulary {
	return t.vocab
}

// IDF returns the weight of the term at index i.
func (t *Table) IDF(i int) float64 {
	return t.idf[i]
}

// Weights returns a copy of the IDF table in vocabulary order.
func (t *Table) Weights() []float64 {
	out := make([]float64, len(t.idf))
	copy(out, t.idf)
	return out
}

// Dim returns the length of every vector this table produces.
func (t *Table) Dim() int {
	return t.vocab.Len()
}

// Transform converts a processed document to an L2-normalized TF-IDF vector.
//
// Terms outside the vocabulary are dropped. A document with no vocabulary
// terms yields the zero vector.
func (t *Table) Transform(doc string) Vector {
	vec := make(Vector, t.vocab.Len())

	for _, term := range tokenize(doc) {
		if i, ok := t.vocab.Index(term); ok {
			vec[i]++
		}
	}

	for i, count := range vec {
		if count != 0 {
			vec[i] = count * t.idf[i]
		}
	}

	norm := vec.Norm()
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// TransformAll transforms every document in docs.
func (t *Table) TransformAll(docs []string) []Vector {
	out := make([]Vector, len(docs))
	for i, doc := range docs {
		out[i] = t.Transform(doc)
	}
	return out
}

// tokenize splits a processed document into terms.
func tokenize(doc string) []string {
	return strings.Fields(doc)
}
