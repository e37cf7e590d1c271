package offline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/drinks/internal/domain"
)

// Source tells where a handled response came from
type Source int

const (
	SourcePassthrough Source = iota // Not intercepted
	SourceCache
	SourceNetwork
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourcePassthrough:
		return "passthrough"
	case SourceCache:
		return "cache"
	case SourceNetwork:
		return "network"
	case SourceFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// offlinePayload is the body of the synthetic offline response
type offlinePayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Eligible reports whether req is intercepted: a GET to the app origin or
// to an allow-listed external origin
func (p *Proxy) Eligible(req *domain.Request) bool {
	if req.Method != "" && req.Method != http.MethodGet {
		return false
	}
	u, err := url.Parse(req.URL)
	if err != nil || !u.IsAbs() {
		return false
	}
	origin := originOf(u)
	return origin == originOf(p.origin) || p.allowed[origin]
}

// Handle serves req.
//
// Ineligible requests, and every request before the first activation, go
// straight to the network; only then can an error be returned. Eligible
// requests are served cache-first: a hit in the static or dynamic
// generation is returned without touching the network; a miss is fetched
// and a 2xx response is stored in the dynamic generation. A failed fetch or
// non-2xx response yields the offline fallback.
func (p *Proxy) Handle(ctx context.Context, req *domain.Request) (*domain.CachedResponse, Source, error) {
	gens, active := p.serving()
	if !active || !p.Eligible(req) {
		resp, err := p.fetcher.Fetch(ctx, req)
		return resp, SourcePassthrough, err
	}

	key, _ := cacheKey(req.Method, req.URL)
	logger := p.logger.With("url", req.URL)

	cached, ok, err := p.storage.Match(ctx, gens.Names(), key)
	if err != nil {
		logger.Warn("cache lookup failed", "error", err)
	}
	if ok {
		logger.Debug("serving from cache")
		return cached, SourceCache, nil
	}

	resp, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		logger.Warn("network fetch failed", "error", err)
		return p.fallback(ctx, req, gens), SourceFallback, nil
	}
	if !resp.OK() {
		logger.Warn("network fetch unsuccessful", "status", resp.Status)
		return p.fallback(ctx, req, gens), SourceFallback, nil
	}

	if err := p.storage.Put(ctx, gens.Dynamic, key, stamp(resp)); err != nil {
		logger.Warn("failed to cache response", "cache", gens.Dynamic, "error", err)
	} else {
		logger.Debug("added to cache", "cache", gens.Dynamic)
	}
	return resp, SourceNetwork, nil
}

// fallback returns the cached entry page for navigations, or else the
// synthetic offline response. Neither is written to any cache.
func (p *Proxy) fallback(ctx context.Context, req *domain.Request, gens Generations) *domain.CachedResponse {
	if req.Navigate {
		entry := p.origin.ResolveReference(&url.URL{Path: p.opts.EntryPage}).String()
		key, _ := cacheKey(http.MethodGet, entry)
		resp, ok, err := p.storage.Match(ctx, gens.Names(), key)
		if err != nil {
			p.logger.Warn("entry page lookup failed", "error", err)
		}
		if ok {
			return resp
		}
	}
	return p.offlineResponse()
}

// offlineResponse builds the synthetic 503 returned when nothing else can serve
func (p *Proxy) offlineResponse() *domain.CachedResponse {
	body, _ := json.Marshal(offlinePayload{
		Error:   "Offline",
		Message: p.opts.OfflineMessage,
	})
	return &domain.CachedResponse{
		Status:     http.StatusServiceUnavailable,
		StatusText: http.StatusText(http.StatusServiceUnavailable),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       body,
		StoredAt:   time.Now().UTC(),
	}
}

// IsNavigation reports whether an HTTP request is a top-level document load.
// Sec-Fetch-Mode decides when present; otherwise a GET accepting HTML counts.
func IsNavigation(r *http.Request) bool {
	if mode := r.Header.Get("Sec-Fetch-Mode"); mode != "" {
		return mode == "navigate"
	}
	return r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html")
}
