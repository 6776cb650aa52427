package tfidf

import (
	"errors"
	"math"
	"testing"
)

func TestFit(t *testing.T) {
	tests := []struct {
		name        string
		documents   []string
		maxFeatures int
		wantTerms   []string
		wantErr     error
	}{
		{
			name:      "empty corpus",
			documents: []string{},
			wantErr:   ErrEmptyCorpus,
		},
		{
			name:      "only empty documents",
			documents: []string{"", "   "},
			wantErr:   ErrEmptyCorpus,
		},
		{
			name:      "first occurrence order",
			documents: []string{"text long", "long aul", "text"},
			wantTerms: []string{"text", "long", "aul"},
		},
		{
			name:        "cap keeps most frequent terms",
			documents:   []string{"a b c", "c d", "c b e"},
			maxFeatures: 2,
			wantTerms:   []string{"b", "c"},
		},
		{
			name:        "cap ties go to first occurrence",
			documents:   []string{"x y z", "z w"},
			maxFeatures: 2,
			wantTerms:   []string{"x", "z"},
		},
		{
			name:        "cap larger than vocabulary",
			documents:   []string{"a b"},
			maxFeatures: 10,
			wantTerms:   []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Fit(tt.documents, tt.maxFeatures)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Fit() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fit() unexpected error: %v", err)
			}

			got := table.Vocabulary().Terms()
			if len(got) != len(tt.wantTerms) {
				t.Fatalf("Fit() vocabulary = %v, want %v", got, tt.wantTerms)
			}
			for i := range got {
				if got[i] != tt.wantTerms[i] {
					t.Errorf("Fit() term[%d] = %s, want %s", i, got[i], tt.wantTerms[i])
				}
			}
			if tt.maxFeatures > 0 && table.Dim() > tt.maxFeatures {
				t.Errorf("Fit() vocabulary size %d exceeds cap %d", table.Dim(), tt.maxFeatures)
			}
		})
	}
}

func TestIDF(t *testing.T) {
	// "text" appears in 2 of 3 documents, "aul" in 1 of 3
	table, err := Fit([]string{"text long", "text aul", "long"}, 0)
	if err != nil {
		t.Fatalf("Fit() unexpected error: %v", err)
	}

	tests := []struct {
		term string
		want float64
	}{
		{"text", math.Log(4.0/3.0) + 1},
		{"long", math.Log(4.0/3.0) + 1},
		{"aul", math.Log(4.0/2.0) + 1},
	}

	for _, tt := range tests {
		i, ok := table.Vocabulary().Index(tt.term)
		if !ok {
			t.Fatalf("term %q missing from vocabulary", tt.term)
		}
		if math.Abs(table.IDF(i)-tt.want) > 1e-12 {
			t.Errorf("IDF(%s) = %f, want %f", tt.term, table.IDF(i), tt.want)
		}
		if table.IDF(i) <= 0 {
			t.Errorf("IDF(%s) = %f, want positive", tt.term, table.IDF(i))
		}
	}
}

func TestTransform(t *testing.T) {
	table, err := Fit([]string{"text long", "text aul", "long"}, 0)
	if err != nil {
		t.Fatalf("Fit() unexpected error: %v", err)
	}

	t.Run("unit norm", func(t *testing.T) {
		vec := table.Transform("text text aul")
		if len(vec) != table.Dim() {
			t.Fatalf("Transform() length = %d, want %d", len(vec), table.Dim())
		}
		if math.Abs(vec.Norm()-1) > 1e-12 {
			t.Errorf("Transform() norm = %f, want 1", vec.Norm())
		}
	})

	t.Run("weights follow tf times idf", func(t *testing.T) {
		vec := table.Transform("text text aul")
		textIdx, _ := table.Vocabulary().Index("text")
		aulIdx, _ := table.Vocabulary().Index("aul")

		rawText := 2 * (math.Log(4.0/3.0) + 1)
		rawAul := 1 * (math.Log(2.0) + 1)
		norm := math.Sqrt(rawText*rawText + rawAul*rawAul)

		if math.Abs(vec[textIdx]-rawText/norm) > 1e-12 {
			t.Errorf("weight(text) = %f, want %f", vec[textIdx], rawText/norm)
		}
		if math.Abs(vec[aulIdx]-rawAul/norm) > 1e-12 {
			t.Errorf("weight(aul) = %f, want %f", vec[aulIdx], rawAul/norm)
		}
	})

	t.Run("unknown terms dropped", func(t *testing.T) {
		vec := table.Transform("long mistéri")
		if vec.NonZero() != 1 {
			t.Errorf("Transform() nonzero = %d, want 1", vec.NonZero())
		}
	})

	t.Run("no vocabulary terms gives zero vector", func(t *testing.T) {
		for _, doc := range []string{"", "unseen words only"} {
			vec := table.Transform(doc)
			if len(vec) != table.Dim() {
				t.Fatalf("Transform(%q) length = %d, want %d", doc, len(vec), table.Dim())
			}
			if vec.NonZero() != 0 {
				t.Errorf("Transform(%q) = %v, want zero vector", doc, vec)
			}
		}
	})

	t.Run("vocabulary stays closed", func(t *testing.T) {
		before := table.Dim()
		_ = table.Transform("brand new terms")
		if table.Dim() != before {
			t.Errorf("Transform() grew the vocabulary from %d to %d", before, table.Dim())
		}
	})
}

func TestNewTable(t *testing.T) {
	tests := []struct {
		name    string
		terms   []string
		idf     []float64
		wantErr bool
	}{
		{"valid", []string{"a", "b"}, []float64{1, 2}, false},
		{"length mismatch", []string{"a"}, []float64{1, 2}, true},
		{"duplicate term", []string{"a", "a"}, []float64{1, 1}, true},
		{"zero weight", []string{"a"}, []float64{0}, true},
		{"nan weight", []string{"a"}, []float64{math.NaN()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.terms, tt.idf)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewTable() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransformAll(t *testing.T) {
	table, err := Fit([]string{"a b", "b c"}, 0)
	if err != nil {
		t.Fatalf("Fit() unexpected error: %v", err)
	}

	vecs := table.TransformAll([]string{"a", "", "c b"})
	if len(vecs) != 3 {
		t.Fatalf("TransformAll() returned %d vectors, want 3", len(vecs))
	}
	if vecs[1].NonZero() != 0 {
		t.Errorf("TransformAll() empty document produced %v", vecs[1])
	}
}
