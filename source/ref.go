package source

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/miampf/schnuffel/hosterr"
)

// Scheme identifies where module bytes are read from.
type Scheme string

const (
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
	SchemeFile  Scheme = "file"
)

// Ref is a parsed module source: an http(s) URL or a local file.
type Ref struct {
	raw    string
	scheme Scheme
	url    *url.URL
	path   string
}

// Parse accepts http:// and https:// URLs, file:// URLs and plain paths.
// Any other scheme is rejected.
func Parse(raw string) (Ref, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Ref{}, hosterr.New("source.Parse", hosterr.KindLoad, hosterr.CodeSourceUnreachable, "empty source")
	}

	if !strings.Contains(raw, "://") {
		return Ref{raw: raw, scheme: SchemeFile, path: filepath.Clean(raw)}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Ref{}, hosterr.Newf("source.Parse", hosterr.KindLoad, hosterr.CodeSourceUnreachable,
			"invalid source %q", raw).WithCause(err)
	}

	switch Scheme(strings.ToLower(u.Scheme)) {
	case SchemeHTTP, SchemeHTTPS:
		if u.Host == "" {
			return Ref{}, hosterr.Newf("source.Parse", hosterr.KindLoad, hosterr.CodeSourceUnreachable,
				"source %q has no host", raw)
		}
		return Ref{raw: raw, scheme: Scheme(strings.ToLower(u.Scheme)), url: u}, nil
	case SchemeFile:
		if u.Path == "" {
			return Ref{}, hosterr.Newf("source.Parse", hosterr.KindLoad, hosterr.CodeSourceUnreachable,
				"source %q has no path", raw)
		}
		return Ref{raw: raw, scheme: SchemeFile, path: filepath.FromSlash(u.Path)}, nil
	default:
		return Ref{}, hosterr.Newf("source.Parse", hosterr.KindLoad, hosterr.CodeSourceUnreachable,
			"unsupported source scheme %q", u.Scheme)
	}
}

// MustParse is Parse for static sources; it panics on error.
func MustParse(raw string) Ref {
	r, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return r
}

// String returns the source as given to Parse.
func (r Ref) String() string {
	return r.raw
}

// Scheme returns the source scheme.
func (r Ref) Scheme() Scheme {
	return r.scheme
}

// IsRemote reports whether the bytes come over HTTP.
func (r Ref) IsRemote() bool {
	return r.scheme == SchemeHTTP || r.scheme == SchemeHTTPS
}

// Path returns the local file path of a file source.
func (r Ref) Path() string {
	return r.path
}

// URL returns the URL of a remote source, or nil.
func (r Ref) URL() *url.URL {
	if r.url == nil {
		return nil
	}
	u := *r.url
	return &u
}

// Name returns the last path element, used as a display name.
func (r Ref) Name() string {
	p := r.path
	if r.url != nil {
		p = r.url.Path
	}
	name := filepath.Base(filepath.FromSlash(p))
	if name == "." || name == string(filepath.Separator) {
		return r.raw
	}
	return name
}
