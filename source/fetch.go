package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/miampf/schnuffel/hosterr"
)

// Fetch limits.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxBytes     = 64 << 20
	DefaultMaxRedirects = 5
)

var (
	errTooManyRedirects  = errors.New("too many redirects")
	errRedirectBadScheme = errors.New("redirect target scheme is not http/https")
)

// FetchOption configures a Fetcher.
type FetchOption func(*Fetcher)

// WithTimeout bounds a whole remote fetch.
func WithTimeout(d time.Duration) FetchOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithMaxBytes caps the size of module bytes, local or remote.
func WithMaxBytes(n int64) FetchOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// WithMaxRedirects caps followed redirects.
func WithMaxRedirects(n int) FetchOption {
	return func(f *Fetcher) {
		if n >= 0 {
			f.maxRedirects = n
		}
	}
}

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) FetchOption {
	return func(f *Fetcher) {
		if rt != nil {
			f.transport = rt
		}
	}
}

// WithCache stores remote bytes in c and serves later fetches from it.
func WithCache(c Cache) FetchOption {
	return func(f *Fetcher) {
		f.cache = c
	}
}

// WithLogger sets the fetcher's logger.
func WithLogger(logger *slog.Logger) FetchOption {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// Fetcher reads module bytes for a Ref. Remote fetches are bounded in time,
// size and redirects and only ever follow http/https.
type Fetcher struct {
	timeout      time.Duration
	maxBytes     int64
	maxRedirects int
	transport    http.RoundTripper
	cache        Cache
	logger       *slog.Logger
}

// NewFetcher returns a Fetcher with the default limits.
func NewFetcher(opts ...FetchOption) *Fetcher {
	f := &Fetcher{
		timeout:      DefaultTimeout,
		maxBytes:     DefaultMaxBytes,
		maxRedirects: DefaultMaxRedirects,
		transport:    http.DefaultTransport,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the module bytes ref names. Every failure is a load error
// with code SOURCE_UNREACHABLE.
func (f *Fetcher) Fetch(ctx context.Context, ref Ref) ([]byte, error) {
	return f.FetchPinned(ctx, ref, "")
}

// FetchPinned is Fetch for bytes that must match a hex SHA-256 pin. Bytes
// that do not match fail with INTEGRITY_MISMATCH and are never cached; a
// cached entry that does not match is refetched.
func (f *Fetcher) FetchPinned(ctx context.Context, ref Ref, pin string) ([]byte, error) {
	if ref.IsRemote() {
		return f.fetchRemote(ctx, ref, pin)
	}
	b, err := f.readFile(ref)
	if err != nil {
		return nil, err
	}
	if err := Verify(b, pin); err != nil {
		return nil, withModule(ref, err)
	}
	return b, nil
}

func (f *Fetcher) readFile(ref Ref) ([]byte, error) {
	file, err := os.Open(ref.Path())
	if err != nil {
		return nil, unreachable(ref, "open module file", err)
	}
	defer file.Close()

	return f.readLimited(ref, file)
}

func (f *Fetcher) fetchRemote(ctx context.Context, ref Ref, pin string) ([]byte, error) {
	key := ref.String()
	if f.cache != nil {
		b, ok, err := f.cache.Get(ctx, key)
		switch {
		case err != nil:
			f.logger.Warn("module cache read failed", "source", key, "error", err)
		case ok && Verify(b, pin) != nil:
			f.logger.Warn("cached module does not match pin, refetching", "source", key)
		case ok:
			f.logger.Debug("module served from cache", "source", key, "bytes", len(b))
			return b, nil
		}
	}

	maxRedirects := f.maxRedirects
	client := &http.Client{
		Timeout:   f.timeout,
		Transport: f.transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return errTooManyRedirects
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return errRedirectBadScheme
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL().String(), nil)
	if err != nil {
		return nil, unreachable(ref, "build request", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		var ne net.Error
		switch {
		case errors.Is(err, errTooManyRedirects):
			return nil, unreachable(ref, fmt.Sprintf("more than %d redirects", maxRedirects), err)
		case errors.Is(err, errRedirectBadScheme):
			return nil, unreachable(ref, "redirect to a non-http scheme", err)
		case errors.As(err, &ne) && ne.Timeout(), errors.Is(err, context.DeadlineExceeded):
			return nil, unreachable(ref, "fetch timed out", err)
		default:
			return nil, unreachable(ref, "fetch failed", err)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, unreachable(ref, fmt.Sprintf("server returned %d", resp.StatusCode), nil).
			WithDetails(map[string]any{"status": resp.StatusCode})
	}

	b, err := f.readLimited(ref, resp.Body)
	if err != nil {
		return nil, err
	}
	if err := Verify(b, pin); err != nil {
		return nil, withModule(ref, err)
	}

	if f.cache != nil {
		if err := f.cache.Put(ctx, key, b); err != nil {
			f.logger.Warn("module cache write failed", "source", key, "error", err)
		}
	}
	f.logger.Debug("module fetched", "source", key, "bytes", len(b))
	return b, nil
}

// readLimited reads at most maxBytes+1 to detect overflow deterministically.
func (f *Fetcher) readLimited(ref Ref, r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, unreachable(ref, "read module", err)
	}
	if int64(len(b)) > f.maxBytes {
		return nil, unreachable(ref, fmt.Sprintf("module larger than %d bytes", f.maxBytes), nil)
	}
	return b, nil
}

func withModule(ref Ref, err error) error {
	var he *hosterr.Error
	if errors.As(err, &he) {
		he.Module = ref.String()
	}
	return err
}

func unreachable(ref Ref, msg string, cause error) *hosterr.Error {
	e := hosterr.New("source.Fetch", hosterr.KindLoad, hosterr.CodeSourceUnreachable, msg).
		WithModule(ref.String())
	if cause != nil {
		e = e.WithCause(cause)
	}
	return e
}
