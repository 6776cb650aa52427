package textproc

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
)

//go:embed resources/*.stopwords resources/*.rules
var embedded embed.FS

// DefaultLanguage is the language whose stopwords and stemming rules ship
// with the binary.
const DefaultLanguage = "portuguese"

// Resources bundles the language-specific tables the pipeline depends on.
// It is built once at startup and shared read-only by every Processor.
type Resources struct {
	Language  string
	Stopwords *Stopwords
	Rules     *RuleSet
	// Fingerprint identifies the stopword and rule bytes the tables were
	// parsed from. Resources assembled by hand leave it empty.
	Fingerprint string
}

// ResourceOptions selects where the stopword list and stemming rules come
// from. Empty paths fall back to the embedded tables for Language.
type ResourceOptions struct {
	Language      string
	StopwordsFile string
	RulesFile     string
}

// LoadResources builds Resources from embedded tables or from the files
// named in opts.
func LoadResources(opts ResourceOptions) (*Resources, error) {
	lang := opts.Language
	if lang == "" {
		lang = DefaultLanguage
	}

	stopReader, err := openResource(opts.StopwordsFile, lang+".stopwords")
	if err != nil {
		return nil, fmt.Errorf("stopwords for %s: %w", lang, err)
	}
	defer stopReader.Close()

	h := sha256.New()
	stops, err := ReadStopwords(io.TeeReader(stopReader, h))
	if err != nil {
		return nil, fmt.Errorf("stopwords for %s: %w", lang, err)
	}

	rulesReader, err := openResource(opts.RulesFile, lang+".rules")
	if err != nil {
		return nil, fmt.Errorf("stemming rules for %s: %w", lang, err)
	}
	defer rulesReader.Close()

	h.Write([]byte{0})
	rules, err := ParseRules(io.TeeReader(rulesReader, h))
	if err != nil {
		return nil, fmt.Errorf("stemming rules for %s: %w", lang, err)
	}

	return &Resources{
		Language:    lang,
		Stopwords:   stops,
		Rules:       rules,
		Fingerprint: hex.EncodeToString(h.Sum(nil)[:8]),
	}, nil
}

// DefaultResources loads the embedded Portuguese tables. The embedded files
// are part of the build, so a failure here is a programming error.
func DefaultResources() *Resources {
	res, err := LoadResources(ResourceOptions{Language: DefaultLanguage})
	if err != nil {
		panic(fmt.Sprintf("textproc: embedded resources are invalid: %v", err))
	}
	return res
}

// openResource opens file when set, otherwise the embedded resource name.
func openResource(file, name string) (io.ReadCloser, error) {
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open %q: %w", file, err)
		}
		return f, nil
	}

	f, err := embedded.Open(path.Join("resources", name))
	if err != nil {
		return nil, fmt.Errorf("no embedded resource %q: %w", name, err)
	}
	return f, nil
}
