package textproc

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/kljensen/snowball"
)

// Stemmer names recorded in model artifacts.
const (
	StemmerRules    = "rslp"
	StemmerSnowball = "snowball"
	StemmerNone     = "none"
)

// ErrUnknownStemmer is returned for a stemmer name NewStemmer does not know.
var ErrUnknownStemmer = errors.New("unknown stemmer")

// Stemmer maps a token to its stem. Implementations must be pure: the same
// token always yields the same stem.
type Stemmer interface {
	Stem(token string) string
	Name() string
}

// NewStemmer builds the stemmer called name over res.
func NewStemmer(name string, res *Resources) (Stemmer, error) {
	switch name {
	case StemmerRules, "":
		if res == nil || res.Rules == nil {
			return nil, fmt.Errorf("%s stemmer requires a rule table", StemmerRules)
		}
		return NewRuleStemmer(res.Rules), nil
	case StemmerSnowball:
		lang := DefaultLanguage
		if res != nil && res.Language != "" {
			lang = res.Language
		}
		return NewSnowballStemmer(lang), nil
	case StemmerNone:
		return identityStemmer{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStemmer, name)
	}
}

// SnowballStemmer delegates to the Snowball algorithms. Tokens in a language
// the library does not support come back unchanged.
type SnowballStemmer struct {
	language string
}

// NewSnowballStemmer returns a Snowball stemmer for language.
func NewSnowballStemmer(language string) *SnowballStemmer {
	return &SnowballStemmer{language: language}
}

// Stem returns the Snowball stem of token, or token itself on failure.
func (s *SnowballStemmer) Stem(token string) string {
	stemmed, err := snowball.Stem(token, s.language, true)
	if err != nil {
		slog.Debug("Snowball stemming failed, keeping token", "language", s.language, "token", token, "error", err)
		return token
	}
	return stemmed
}

// Name identifies the stemmer in model artifacts.
func (s *SnowballStemmer) Name() string {
	return StemmerSnowball
}

type identityStemmer struct{}

func (identityStemmer) Stem(token string) string { return token }

func (identityStemmer) Name() string { return StemmerNone }
