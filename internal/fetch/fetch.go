// Package fetch opens CLI inputs: standard input, HTTP(S) URLs and local files,
// with size and time limits taken from configuration.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults used when a Config field is zero.
const (
	DefaultMaxBytes = 10 * 1024 * 1024
	DefaultTimeout  = 30 * time.Second
)

// ErrTooLarge is returned when a source exceeds the configured size limit.
var ErrTooLarge = errors.New("content exceeds size limit")

// Config bounds every read.
type Config struct {
	MaxBytes int64
	Timeout  time.Duration
	// Stdin is read for the "-" source; nil means os.Stdin.
	Stdin io.Reader
}

// Fetcher opens sources.
type Fetcher struct {
	maxBytes int64
	stdin    io.Reader
	client   *http.Client
}

// New returns a Fetcher for cfg.
func New(cfg Config) *Fetcher {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Stdin == nil {
		cfg.Stdin = os.Stdin
	}

	return &Fetcher{
		maxBytes: cfg.MaxBytes,
		stdin:    cfg.Stdin,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: cfg.Timeout / 6,
				}).DialContext,
				TLSHandshakeTimeout:   cfg.Timeout / 6,
				ResponseHeaderTimeout: cfg.Timeout / 2,
				DisableKeepAlives:     true,
			},
		},
	}
}

// limitedReader fails once more than n bytes have been read.
type limitedReader struct {
	io.ReadCloser
	n      int64
	source string
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.n <= 0 {
		// one probe byte distinguishes "exactly at the limit" from "over it"
		var probe [1]byte
		if n, _ := l.ReadCloser.Read(probe[:]); n > 0 {
			return 0, fmt.Errorf("%w: %q", ErrTooLarge, l.source)
		}
		return 0, io.EOF
	}
	if int64(len(p)) > l.n {
		p = p[:l.n]
	}
	n, err := l.ReadCloser.Read(p)
	l.n -= int64(n)
	return n, err
}

// Open returns a reader for source:
//   - "-" reads standard input
//   - "http://" and "https://" URLs are fetched with GET
//   - anything else is a local file path
func (f *Fetcher) Open(ctx context.Context, source string) (io.ReadCloser, error) {
	switch {
	case source == "-":
		return &limitedReader{ReadCloser: io.NopCloser(f.stdin), n: f.maxBytes, source: "stdin"}, nil
	case strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://"):
		return f.openURL(ctx, source)
	default:
		return f.openFile(source)
	}
}

// ReadAll reads source completely.
func (f *Fetcher) ReadAll(ctx context.Context, source string) ([]byte, error) {
	rc, err := f.Open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", source, err)
	}
	slog.Debug("Fetched source", "source", source, "bytes", len(data))
	return data, nil
}

func (f *Fetcher) openURL(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for URL %q: %w", url, err)
	}
	req.Header.Set("User-Agent", "relatos/0.1")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %q: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP request failed for URL %q: status %s", url, resp.Status)
	}

	if contentLength := resp.Header.Get("Content-Length"); contentLength != "" {
		if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil && size > f.maxBytes {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %q is %d bytes, limit %d", ErrTooLarge, url, size, f.maxBytes)
		}
	}

	return &limitedReader{ReadCloser: resp.Body, n: f.maxBytes, source: url}, nil
}

func (f *Fetcher) openFile(path string) (io.ReadCloser, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file %q does not exist", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to access file %q: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%q is a directory", path)
	}
	if info.Size() > f.maxBytes {
		return nil, fmt.Errorf("%w: file %q is %d bytes, limit %d", ErrTooLarge, path, info.Size(), f.maxBytes)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %q: %w", path, err)
	}
	return file, nil
}
