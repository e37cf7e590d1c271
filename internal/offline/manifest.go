package offline

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mmcdole/drinks/internal/domain"
)

// Generations names the two cache generations of one version
type Generations struct {
	Static  string
	Dynamic string
}

// GenerationNames derives the generation names for a version,
// e.g. "drinks-static-v1.2" and "drinks-dynamic-v1.2"
func GenerationNames(prefix, version string) Generations {
	return Generations{
		Static:  prefix + "-static-" + version,
		Dynamic: prefix + "-dynamic-" + version,
	}
}

// Names returns the generations in lookup order
func (g Generations) Names() []string {
	return []string{g.Static, g.Dynamic}
}

// Owns reports whether name belongs to this version
func (g Generations) Owns(name string) bool {
	return name == g.Static || name == g.Dynamic
}

// parseOrigin normalizes an origin string to scheme://host
func parseOrigin(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("origin %q is not absolute", raw)
	}
	return originOf(u), nil
}

// originOf returns scheme://host of u, lower-cased
func originOf(u *url.URL) string {
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// normalizeURL returns a copy of u with scheme and host lower-cased, so
// equivalent URLs map to one cache key
func normalizeURL(u *url.URL) *url.URL {
	n := *u
	n.Scheme = strings.ToLower(u.Scheme)
	n.Host = strings.ToLower(u.Host)
	return &n
}

// cacheKey returns the cache key of an absolute request URL
func cacheKey(method, raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", false
	}
	return domain.RequestKey(method, normalizeURL(u).String()), true
}

// resolveAssets turns manifest entries into absolute URLs. Relative paths
// resolve against base; absolute URLs are kept. Duplicates are dropped
// while keeping first-seen order.
func resolveAssets(base *url.URL, assets []string) ([]string, error) {
	seen := make(map[string]bool, len(assets))
	out := make([]string, 0, len(assets))
	for _, asset := range assets {
		asset = strings.TrimSpace(asset)
		if asset == "" {
			continue
		}
		ref, err := url.Parse(asset)
		if err != nil {
			return nil, fmt.Errorf("invalid asset %q: %w", asset, err)
		}
		abs := normalizeURL(base.ResolveReference(ref)).String()
		if seen[abs] {
			continue
		}
		seen[abs] = true
		out = append(out, abs)
	}
	return out, nil
}
