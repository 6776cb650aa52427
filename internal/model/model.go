// Package model defines the trained classifier bundle and its on-disk artifact.
//
// A Model ties together everything prediction needs: the names of the text
// resources it was trained with, the fitted TF-IDF table, the Naive Bayes
// parameters and the category labels. It is immutable once built.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chriscorrea/relatos/internal/category"
	"github.com/chriscorrea/relatos/internal/classify"
	"github.com/chriscorrea/relatos/internal/textproc"
	"github.com/chriscorrea/relatos/internal/tfidf"
	"github.com/google/uuid"
)

// FormatVersion is the artifact layout written by Save.
const FormatVersion = 1

// ErrCorrupt is returned when an artifact cannot be decoded or fails validation.
var ErrCorrupt = errors.New("corrupt model artifact")

// Model is a trained classifier.
type Model struct {
	ID         string
	CreatedAt  time.Time
	Pipeline   textproc.Spec
	Categories []string
	Vectorizer *tfidf.Table
	Classifier *classify.NaiveBayes
}

// New bundles fitted components under a fresh ID.
func New(pipeline textproc.Spec, vectorizer *tfidf.Table, classifier *classify.NaiveBayes) (*Model, error) {
	m := &Model{
		ID:         uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
		Pipeline:   pipeline,
		Categories: category.Labels(),
		Vectorizer: vectorizer,
		Classifier: classifier,
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Classify scores a processed document.
func (m *Model) Classify(processed string) (category.Category, category.Distribution, error) {
	vec := m.Vectorizer.Transform(processed)
	if vec.NonZero() == 0 {
		slog.Debug("Document has no vocabulary terms, scoring from priors", "model", m.ID)
	}
	best, probs, err := m.Classifier.Predict(vec)
	if err != nil {
		return 0, category.Distribution{}, err
	}
	dist, ok := category.FromSlice(probs)
	if !ok {
		return 0, category.Distribution{}, fmt.Errorf("%w: classifier returned %d probabilities", classify.ErrDimensionMismatch, len(probs))
	}
	return category.Category(best), dist, nil
}

func (m *Model) validate() error {
	if m.Vectorizer == nil || m.Classifier == nil {
		return fmt.Errorf("model is missing its vectorizer or classifier")
	}
	if m.Vectorizer.Dim() != m.Classifier.Dim() {
		return fmt.Errorf("%w: vocabulary has %d terms, classifier expects %d",
			classify.ErrDimensionMismatch, m.Vectorizer.Dim(), m.Classifier.Dim())
	}
	if m.Classifier.Classes() != category.Count {
		return fmt.Errorf("classifier has %d classes, want %d", m.Classifier.Classes(), category.Count)
	}

	labels := category.Labels()
	if len(m.Categories) != len(labels) {
		return fmt.Errorf("model has %d categories, want %d", len(m.Categories), len(labels))
	}
	for i, label := range labels {
		if m.Categories[i] != label {
			return fmt.Errorf("category %d is %q, want %q", i, m.Categories[i], label)
		}
	}
	return nil
}

// artifact is the JSON layout of a saved model. Probabilities are stored
// rather than their logarithms so absent classes stay representable.
type artifact struct {
	Version     int           `json:"version"`
	ID          string        `json:"id"`
	CreatedAt   time.Time     `json:"created_at"`
	Pipeline    textproc.Spec `json:"pipeline"`
	Categories  []string      `json:"categories"`
	Vocabulary  []string      `json:"vocabulary"`
	IDF         []float64     `json:"idf"`
	Priors      []float64     `json:"priors"`
	Likelihoods [][]float64   `json:"likelihoods"`
}

// Save writes m as JSON.
func (m *Model) Save(w io.Writer) error {
	a := artifact{
		Version:     FormatVersion,
		ID:          m.ID,
		CreatedAt:   m.CreatedAt,
		Pipeline:    m.Pipeline,
		Categories:  m.Categories,
		Vocabulary:  m.Vectorizer.Vocabulary().Terms(),
		IDF:         m.Vectorizer.Weights(),
		Priors:      m.Classifier.Priors(),
		Likelihoods: m.Classifier.Likelihoods(),
	}

	enc := json.NewEncoder(w)
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return nil
}

// Load reads a model written by Save. Any decoding or validation failure
// wraps ErrCorrupt.
func Load(r io.Reader) (*Model, error) {
	var a artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if a.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrCorrupt, a.Version)
	}
	if a.ID == "" {
		return nil, fmt.Errorf("%w: missing model id", ErrCorrupt)
	}

	table, err := tfidf.NewTable(a.Vocabulary, a.IDF)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	nb, err := classify.New(a.Priors, a.Likelihoods)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	m := &Model{
		ID:         a.ID,
		CreatedAt:  a.CreatedAt,
		Pipeline:   a.Pipeline,
		Categories: a.Categories,
		Vectorizer: table,
		Classifier: nb,
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return m, nil
}

// SaveFile writes m to path, replacing any existing file only once the new
// artifact is complete.
func (m *Model) SaveFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".model-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary model file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := m.Save(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move model into place: %w", err)
	}

	slog.Debug("Model saved", "path", path, "id", m.ID, "vocabulary", m.Vectorizer.Dim())
	return nil
}

// LoadFile reads the artifact at path.
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model: %w", err)
	}
	defer f.Close()

	m, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	slog.Debug("Model loaded", "path", path, "id", m.ID, "vocabulary", m.Vectorizer.Dim())
	return m, nil
}
