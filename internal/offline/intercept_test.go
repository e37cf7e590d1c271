package offline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"testing"

	"github.com/mmcdole/drinks/internal/domain"
)

func installed(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, defaultOptions())
	if err := f.proxy.Install(context.Background()); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	return f
}

func get(url string) *domain.Request {
	return &domain.Request{Method: http.MethodGet, URL: url}
}

func TestEligible(t *testing.T) {
	f := newFixture(t, defaultOptions())

	tests := []struct {
		name     string
		req      *domain.Request
		expected bool
	}{
		{"app origin", get(testOrigin + "/style.css"), true},
		{"app origin with query", get(testOrigin + "/api/drinks?x=1"), true},
		{"allowed origin", get("https://fonts.googleapis.com/css2?family=Poppins"), true},
		{"origin case insensitive", get("HTTP://APP.TEST/index.html"), true},
		{"other origin", get("https://cdn.example.com/lib.js"), false},
		{"allowed host other scheme", get("http://fonts.googleapis.com/css2"), false},
		{"post", &domain.Request{Method: http.MethodPost, URL: testOrigin + "/api"}, false},
		{"relative url", get("/style.css"), false},
		{"empty method means get", &domain.Request{URL: testOrigin + "/"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.proxy.Eligible(tt.req); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestHandlePassesThroughBeforeActivation(t *testing.T) {
	f := newFixture(t, defaultOptions())

	resp, source, err := f.proxy.Handle(context.Background(), get(testOrigin+"/style.css"))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if source != SourcePassthrough {
		t.Errorf("Expected passthrough, got %s", source)
	}
	if string(resp.Body) != "body{}" {
		t.Errorf("Expected body{}, got %q", resp.Body)
	}
}

func TestHandleServesCacheWithoutNetwork(t *testing.T) {
	f := installed(t)
	before := f.fetcher.callCount()

	resp, source, err := f.proxy.Handle(context.Background(), get(testOrigin+"/style.css"))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if source != SourceCache {
		t.Errorf("Expected cache, got %s", source)
	}
	if string(resp.Body) != "body{}" {
		t.Errorf("Expected body{}, got %q", resp.Body)
	}
	if after := f.fetcher.callCount(); after != before {
		t.Errorf("Expected no network call, got %d", after-before)
	}
}

func TestHandleMatchesCaseInsensitiveOrigin(t *testing.T) {
	f := installed(t)
	f.fetcher.setOffline(true)

	for _, u := range []string{"HTTP://APP.TEST/style.css", "http://App.Test/style.css"} {
		resp, source, err := f.proxy.Handle(context.Background(), get(u))
		if err != nil {
			t.Fatalf("Handle failed: %v", err)
		}
		if source != SourceCache || string(resp.Body) != "body{}" {
			t.Errorf("Expected cached style.css for %s, got %s %q", u, source, resp.Body)
		}
	}
}

func TestResolveAssetsNormalizesOrigin(t *testing.T) {
	base, _ := url.Parse(testOrigin)
	urls, err := resolveAssets(base, []string{"/a.css", "HTTP://APP.TEST/a.css", "https://Fonts.GoogleAPIs.com/css2"})
	if err != nil {
		t.Fatalf("resolveAssets failed: %v", err)
	}
	expected := []string{testOrigin + "/a.css", "https://fonts.googleapis.com/css2"}
	if !slices.Equal(urls, expected) {
		t.Errorf("Expected %v, got %v", expected, urls)
	}
}

func TestHandleCachesSuccessfulMisses(t *testing.T) {
	f := installed(t)
	ctx := context.Background()
	url := testOrigin + "/img/mojito.png"
	f.fetcher.serve(url, 200, "png")

	_, source, err := f.proxy.Handle(ctx, get(url))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if source != SourceNetwork {
		t.Errorf("Expected network, got %s", source)
	}

	cached, ok, err := f.storage.Match(ctx, []string{"drinks-dynamic-v1.2"}, domain.RequestKey("GET", url))
	if err != nil || !ok {
		t.Fatalf("Expected dynamic cache entry, got ok=%v err=%v", ok, err)
	}
	if string(cached.Body) != "png" {
		t.Errorf("Expected png, got %q", cached.Body)
	}

	// Second request is served offline from the dynamic generation
	f.fetcher.setOffline(true)
	_, source, _ = f.proxy.Handle(ctx, get(url))
	if source != SourceCache {
		t.Errorf("Expected cache, got %s", source)
	}
}

func TestHandleDoesNotCacheErrors(t *testing.T) {
	f := installed(t)
	ctx := context.Background()
	url := testOrigin + "/api/broken"
	f.fetcher.serve(url, 500, "boom")

	resp, source, err := f.proxy.Handle(ctx, get(url))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if source != SourceFallback {
		t.Errorf("Expected fallback, got %s", source)
	}
	if resp.Status != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", resp.Status)
	}

	if _, ok, _ := f.storage.Match(ctx, []string{"drinks-dynamic-v1.2"}, domain.RequestKey("GET", url)); ok {
		t.Error("Expected error response not to be cached")
	}
}

func TestHandleOfflineFallback(t *testing.T) {
	f := installed(t)
	f.fetcher.setOffline(true)
	ctx := context.Background()

	t.Run("navigation gets entry page", func(t *testing.T) {
		req := get(testOrigin + "/drinks/mojito")
		req.Navigate = true
		resp, source, err := f.proxy.Handle(ctx, req)
		if err != nil {
			t.Fatalf("Handle failed: %v", err)
		}
		if source != SourceFallback {
			t.Errorf("Expected fallback, got %s", source)
		}
		if string(resp.Body) != "<html>index</html>" {
			t.Errorf("Expected entry page, got %q", resp.Body)
		}
	})

	t.Run("other requests get offline response", func(t *testing.T) {
		resp, source, err := f.proxy.Handle(ctx, get(testOrigin+"/api/drinks"))
		if err != nil {
			t.Fatalf("Handle failed: %v", err)
		}
		if source != SourceFallback {
			t.Errorf("Expected fallback, got %s", source)
		}
		if resp.Status != http.StatusServiceUnavailable {
			t.Errorf("Expected 503, got %d", resp.Status)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected application/json, got %s", ct)
		}

		var payload offlinePayload
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			t.Fatalf("Expected JSON body, got %q", resp.Body)
		}
		if payload.Error != "Offline" || payload.Message != DefaultOfflineMessage {
			t.Errorf("Unexpected payload: %+v", payload)
		}
	})

	names, _ := f.storage.Names(ctx)
	for _, name := range names {
		if name == "drinks-dynamic-v1.2" {
			t.Error("Expected fallback responses never to be cached")
		}
	}
}

func TestHandleIneligibleGoesToNetwork(t *testing.T) {
	f := installed(t)
	f.fetcher.setOffline(true)

	_, source, err := f.proxy.Handle(context.Background(), get("https://cdn.example.com/lib.js"))
	if source != SourcePassthrough {
		t.Errorf("Expected passthrough, got %s", source)
	}
	if err == nil {
		t.Error("Expected network error for ineligible request")
	}
}

func TestIsNavigation(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		headers  map[string]string
		expected bool
	}{
		{"fetch mode navigate", "GET", map[string]string{"Sec-Fetch-Mode": "navigate"}, true},
		{"fetch mode cors", "GET", map[string]string{"Sec-Fetch-Mode": "cors", "Accept": "text/html"}, false},
		{"accepts html", "GET", map[string]string{"Accept": "text/html,application/xhtml+xml"}, true},
		{"json", "GET", map[string]string{"Accept": "application/json"}, false},
		{"post html", "POST", map[string]string{"Accept": "text/html"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := IsNavigation(r); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}
