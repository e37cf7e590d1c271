package offline

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/drinks/internal/domain"
)

// discover fetches the entry page and appends the eligible assets it
// references to assets. Failures are logged and leave assets unchanged.
func (p *Proxy) discover(ctx context.Context, assets []string) []string {
	entry := p.origin.ResolveReference(&url.URL{Path: p.opts.EntryPage})

	resp, err := p.fetcher.Fetch(ctx, &domain.Request{Method: http.MethodGet, URL: entry.String()})
	if err != nil {
		p.logger.Warn("asset discovery failed", "url", entry.String(), "error", err)
		return assets
	}
	if !resp.OK() {
		p.logger.Warn("asset discovery failed", "url", entry.String(), "status", resp.Status)
		return assets
	}

	found, err := p.parseAssets(entry, resp.Body)
	if err != nil {
		p.logger.Warn("failed to parse entry page", "url", entry.String(), "error", err)
		return assets
	}

	out := append([]string(nil), assets...)
	out = append(out, found...)
	p.logger.Info("discovered assets", "count", len(found))
	return out
}

// parseAssets extracts script, stylesheet, manifest, icon and image
// references from an HTML document, resolved against base. Only references
// the proxy would intercept are returned, in document order.
func (p *Proxy) parseAssets(base *url.URL, html []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	var refs []string
	doc.Find("script[src], img[src]").Each(func(i int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			refs = append(refs, src)
		}
	})
	doc.Find("link[href]").Each(func(i int, s *goquery.Selection) {
		rel := strings.ToLower(s.AttrOr("rel", ""))
		for _, r := range strings.Fields(rel) {
			if r == "stylesheet" || r == "manifest" || r == "icon" || r == "apple-touch-icon" {
				refs = append(refs, s.AttrOr("href", ""))
				break
			}
		}
	})

	var out []string
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" || strings.HasPrefix(ref, "data:") {
			continue
		}
		u, err := base.Parse(ref)
		if err != nil {
			continue
		}
		u.Fragment = ""
		abs := u.String()
		if !p.Eligible(&domain.Request{Method: http.MethodGet, URL: abs}) {
			continue
		}
		out = append(out, abs)
	}
	return out, nil
}
