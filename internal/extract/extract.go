// Package extract turns report sources into plain text before classification.
// Reports saved from a school portal or form export often arrive as HTML;
// plain text passes through unchanged.
package extract

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// PlainText returns the readable text of content.
//
// Parameters:
//   - content: raw bytes of the source
//   - selector: optional CSS selector; when set, only matching elements are kept
//   - baseURL: optional source URL, used by readability for context (may be nil)
//
// Full HTML documents go through readability to drop navigation and other
// page chrome; fragments are flattened with goquery. Content that does not
// look like HTML is returned as is.
func PlainText(content []byte, selector string, baseURL *url.URL) (string, error) {
	if !LooksLikeHTML(content) {
		return string(content), nil
	}

	if selector != "" {
		return selectText(content, selector)
	}

	if isDocument(content) {
		if text, err := mainText(content, baseURL); err == nil && text != "" {
			return text, nil
		} else if err != nil {
			slog.Debug("Readability extraction failed, using full text", "error", err)
		}
	}
	return fragmentText(content)
}

// LooksLikeHTML reports whether content starts with markup.
func LooksLikeHTML(content []byte) bool {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(content, []byte("\xef\xbb\xbf")))
	if len(trimmed) == 0 || trimmed[0] != '<' {
		return false
	}
	lower := strings.ToLower(string(trimmed[:min(len(trimmed), 512)]))
	for _, marker := range []string{"<!doctype html", "<html", "<body", "<p", "<div", "<span", "<article", "<section", "<br", "<h1", "<h2", "<h3", "<ul", "<ol", "<table"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func isDocument(content []byte) bool {
	head := strings.ToLower(string(content[:min(len(content), 1024)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}

// mainText extracts the main article text with go-readability.
func mainText(content []byte, baseURL *url.URL) (string, error) {
	if baseURL == nil {
		baseURL = &url.URL{}
	}
	article, err := readability.FromReader(bytes.NewReader(content), baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to extract main content: %w", err)
	}
	return tidy(article.TextContent), nil
}

// selectText keeps the text of elements matching selector, one per line.
func selectText(content []byte, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	selection := doc.Find(selector)
	if selection.Length() == 0 {
		return "", fmt.Errorf("no elements found matching selector: %s", selector)
	}

	parts := make([]string, 0, selection.Length())
	selection.Each(func(_ int, s *goquery.Selection) {
		if text := tidy(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n"), nil
}

// fragmentText flattens an HTML fragment to its text, dropping scripts and styles.
func fragmentText(content []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	return tidy(doc.Text()), nil
}

// tidy collapses runs of whitespace within lines and drops blank lines.
func tidy(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
