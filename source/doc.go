// Package source resolves a module source reference to module bytes.
//
// A source is an http(s) URL, a file:// URL or a local path. Remote fetches
// follow at most five http/https redirects, time out after 30 seconds and
// refuse modules larger than 64 MiB; the limits are adjustable with
// FetchOption values. Fetched bytes may be pinned to a SHA-256 digest with
// Verify and cached with a MemoryCache or a RedisCache:
//
//	cache, err := source.NewRedisCache(source.RedisOptions{URL: "redis://localhost:6379"})
//	if err != nil {
//	    return err
//	}
//	f := source.NewFetcher(source.WithCache(cache))
//	b, err := f.Fetch(ctx, source.MustParse("https://example.com/whois.wasm"))
package source
