package textproc

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Stopwords is an immutable set of low-information terms.
type Stopwords struct {
	words map[string]struct{}
}

// NewStopwords builds a set from words. Entries are NFC-composed so they
// compare equal to normalized tokens.
func NewStopwords(words []string) *Stopwords {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		set[norm.NFC.String(w)] = struct{}{}
	}
	return &Stopwords{words: set}
}

// ReadStopwords parses one word per line; blank lines and lines starting
// with '#' are ignored.
func ReadStopwords(r io.Reader) (*Stopwords, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stopwords: %w", err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("stopword list is empty")
	}
	return NewStopwords(words), nil
}

// Contains reports exact, case-sensitive membership.
func (s *Stopwords) Contains(token string) bool {
	if s == nil {
		return false
	}
	_, ok := s.words[token]
	return ok
}

// Len returns the number of stopwords.
func (s *Stopwords) Len() int {
	if s == nil {
		return 0
	}
	return len(s.words)
}

// Filter returns the tokens that are not stopwords, in their original order.
func (s *Stopwords) Filter(tokens []string) []string {
	kept := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if s.Contains(token) {
			continue
		}
		kept = append(kept, token)
	}
	return kept
}
