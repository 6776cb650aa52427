// Package textproc turns raw student reports into processed documents: a
// space-joined sequence of stemmed, stopword-filtered tokens.
//
// The pipeline is Normalizer → StopwordFilter → Stemmer. Language tables
// (stopwords and stemming rules) are explicit Resources built once at startup,
// so the same Processor configuration is reproducible at training and at
// prediction time.
//
// Usage Example:
//
//	proc, err := textproc.NewProcessor(textproc.DefaultResources(), textproc.StemmerRules)
//	doc := proc.Process("Não consigo resolver equações!")
//	// doc == "consig resolv equaç"
package textproc

import (
	"fmt"
	"log/slog"
	"strings"
)

// Spec names the resources a Processor was built from. It is stored in model
// artifacts so the prediction path can rebuild an identical chain.
type Spec struct {
	Language string `json:"language"`
	Stemmer  string `json:"stemmer"`
	// Resources is the Fingerprint of the tables, empty when unknown.
	Resources string `json:"resources,omitempty"`
}

// Processor runs the full normalization chain.
type Processor struct {
	normalizer *Normalizer
	stopwords  *Stopwords
	stemmer    Stemmer
	spec       Spec
}

// NewProcessor builds a Processor over res with the stemmer called stemmer.
func NewProcessor(res *Resources, stemmer string) (*Processor, error) {
	if res == nil {
		return nil, fmt.Errorf("nil resources")
	}
	st, err := NewStemmer(stemmer, res)
	if err != nil {
		return nil, err
	}
	p := NewProcessorWith(res.Language, res.Stopwords, st)
	p.spec.Resources = res.Fingerprint
	return p, nil
}

// NewProcessorWith assembles a Processor from explicit components, which
// lets callers substitute their own stopword set or stemmer.
func NewProcessorWith(lang string, stops *Stopwords, stemmer Stemmer) *Processor {
	return &Processor{
		normalizer: NewNormalizer(lang),
		stopwords:  stops,
		stemmer:    stemmer,
		spec:       Spec{Language: lang, Stemmer: stemmer.Name()},
	}
}

// Spec returns the resource names this Processor was built from.
func (p *Processor) Spec() Spec {
	return p.spec
}

// Normalize exposes the first stage on its own.
func (p *Processor) Normalize(doc string) string {
	return p.normalizer.Normalize(doc)
}

// Tokens returns the stemmed, filtered tokens of doc.
func (p *Processor) Tokens(doc string) []string {
	normalized := p.normalizer.Normalize(doc)
	tokens := p.stopwords.Filter(strings.Fields(normalized))

	stems := make([]string, 0, len(tokens))
	for _, token := range tokens {
		stem := p.stemmer.Stem(token)
		if stem == "" {
			continue
		}
		stems = append(stems, stem)
	}
	return stems
}

// Process returns the processed document: stems joined by single spaces,
// with no leading or trailing whitespace.
func (p *Processor) Process(doc string) string {
	stems := p.Tokens(doc)
	slog.Debug("Processed document", "inputLength", len(doc), "stems", len(stems))
	return strings.Join(stems, " ")
}
