package textproc

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// asciiPunctuation includes the ASCII symbols unicode.IsPunct does not
// classify as punctuation ($, +, <, =, >, ^, `, |, ~).
const asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// languageTags maps resource languages to the tag used for case folding.
var languageTags = map[string]language.Tag{
	"portuguese": language.Portuguese,
	"english":    language.English,
	"spanish":    language.Spanish,
	"french":     language.French,
}

// Normalizer lowercases text, replaces punctuation with spaces and drops
// digits. It does not collapse whitespace; tokenization does that.
type Normalizer struct {
	lang language.Tag
}

// NewNormalizer returns a Normalizer that lowercases with the rules of
// lang. Unknown languages use language-neutral case mapping.
func NewNormalizer(lang string) *Normalizer {
	tag, ok := languageTags[lang]
	if !ok {
		tag = language.Und
	}
	return &Normalizer{lang: tag}
}

// Normalize is a pure function of s. Normalize(Normalize(s)) == Normalize(s).
func (n *Normalizer) Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToValidUTF8(s, " ")
	s = norm.NFC.String(s)
	// a fresh Caser per call; cases.Caser is not safe for concurrent use
	s = cases.Lower(n.lang).String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case isPunctuation(r):
			b.WriteByte(' ')
		case unicode.IsDigit(r):
			// digit runs are removed without leaving a gap
		default:
			b.WriteRune(r)
		}
	}
	// removing a digit can leave a combining mark next to a new base letter
	return norm.NFC.String(b.String())
}

func isPunctuation(r rune) bool {
	return unicode.IsPunct(r) || (r < unicode.MaxASCII && strings.ContainsRune(asciiPunctuation, r))
}

// AsDocument converts an arbitrary value into document text. Anything that
// is not a string degrades to the empty string.
func AsDocument(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
