package offline

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/mmcdole/drinks/internal/domain"
	"github.com/mmcdole/drinks/internal/log"
	"github.com/mmcdole/drinks/internal/store"
)

const testOrigin = "http://app.test"

// fakeFetcher serves canned responses by URL and records every fetch
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]*domain.CachedResponse
	offline   bool
	calls     []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{responses: make(map[string]*domain.CachedResponse)}
}

func (f *fakeFetcher) serve(url string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = &domain.CachedResponse{
		Status:     status,
		StatusText: http.StatusText(status),
		Header:     http.Header{"Content-Type": []string{"text/plain"}},
		Body:       []byte(body),
	}
}

func (f *fakeFetcher) setOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

func (f *fakeFetcher) Fetch(ctx context.Context, req *domain.Request) (*domain.CachedResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req.URL)
	if f.offline {
		return nil, errors.New("network unreachable")
	}
	resp, ok := f.responses[req.URL]
	if !ok {
		return &domain.CachedResponse{Status: http.StatusNotFound, StatusText: "Not Found"}, nil
	}
	return resp.Clone(), nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// recordingNotifier collects broadcasts
type recordingNotifier struct {
	mu   sync.Mutex
	msgs []domain.ClientMessage
}

func (n *recordingNotifier) Broadcast(msg domain.ClientMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *recordingNotifier) messages() []domain.ClientMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.ClientMessage(nil), n.msgs...)
}

type fixture struct {
	proxy    *Proxy
	storage  *store.CacheStore
	fetcher  *fakeFetcher
	notifier *recordingNotifier
}

func defaultOptions() Options {
	return Options{
		Origin:         testOrigin,
		CachePrefix:    "drinks",
		Version:        "v1.2",
		EntryPage:      "/index.html",
		StaticAssets:   []string{"/", "/index.html", "/style.css", "/script.js"},
		AllowedOrigins: []string{"https://fonts.googleapis.com"},
	}
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	storage, err := store.NewCacheStore("")
	if err != nil {
		t.Fatalf("NewCacheStore failed: %v", err)
	}
	t.Cleanup(func() { storage.Close() })

	fetcher := newFakeFetcher()
	fetcher.serve(testOrigin+"/", 200, "root")
	fetcher.serve(testOrigin+"/index.html", 200, "<html>index</html>")
	fetcher.serve(testOrigin+"/style.css", 200, "body{}")
	fetcher.serve(testOrigin+"/script.js", 200, "console.log(1)")

	notifier := &recordingNotifier{}
	p, err := New(opts, storage, fetcher, notifier, log.NullLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return &fixture{proxy: p, storage: storage, fetcher: fetcher, notifier: notifier}
}

func TestGenerationNames(t *testing.T) {
	gens := GenerationNames("drinks", "v1.2")
	if gens.Static != "drinks-static-v1.2" {
		t.Errorf("Expected drinks-static-v1.2, got %s", gens.Static)
	}
	if gens.Dynamic != "drinks-dynamic-v1.2" {
		t.Errorf("Expected drinks-dynamic-v1.2, got %s", gens.Dynamic)
	}
	if !gens.Owns("drinks-dynamic-v1.2") || gens.Owns("drinks-static-v1.1") {
		t.Error("Expected Owns to match only this version's generations")
	}
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"missing version", Options{Origin: testOrigin}},
		{"relative origin", Options{Origin: "localhost:8000", Version: "v1"}},
		{"bad allowed origin", Options{Origin: testOrigin, Version: "v1", AllowedOrigins: []string{"fonts"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts, nil, nil, nil, log.NullLogger()); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestInstallCachesManifestAndActivates(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	if err := f.proxy.Install(ctx); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if f.proxy.Phase() != PhaseActive {
		t.Errorf("Expected phase active, got %s", f.proxy.Phase())
	}

	for _, path := range []string{"/", "/index.html", "/style.css", "/script.js"} {
		resp, ok, err := f.storage.Match(ctx, []string{"drinks-static-v1.2"}, domain.RequestKey("GET", testOrigin+path))
		if err != nil || !ok {
			t.Fatalf("Expected %s in static cache, got ok=%v err=%v", path, ok, err)
		}
		if resp.StoredAt.IsZero() {
			t.Errorf("Expected StoredAt to be set for %s", path)
		}
	}

	expected := []string{"drinks-static-v1.2", "drinks-dynamic-v1.2"}
	if names := f.proxy.CacheNames(); !slices.Equal(names, expected) {
		t.Errorf("Expected %v, got %v", expected, names)
	}
}

func TestInstallIsAllOrNothing(t *testing.T) {
	opts := defaultOptions()
	opts.StaticAssets = append(opts.StaticAssets, "/missing.png")
	f := newFixture(t, opts)
	ctx := context.Background()

	err := f.proxy.Install(ctx)
	if !errors.Is(err, domain.ErrInstallFailed) {
		t.Fatalf("Expected ErrInstallFailed, got %v", err)
	}
	if f.proxy.Phase() != PhaseUninstalled {
		t.Errorf("Expected phase uninstalled, got %s", f.proxy.Phase())
	}

	names, err := f.storage.Names(ctx)
	if err != nil {
		t.Fatalf("Names failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("Expected no generations after failed install, got %v", names)
	}
}

func TestInstallFailsWhenOffline(t *testing.T) {
	f := newFixture(t, defaultOptions())
	f.fetcher.setOffline(true)

	if err := f.proxy.Install(context.Background()); !errors.Is(err, domain.ErrInstallFailed) {
		t.Fatalf("Expected ErrInstallFailed, got %v", err)
	}
}

func TestInstallDeduplicatesAssets(t *testing.T) {
	opts := defaultOptions()
	opts.StaticAssets = []string{"/style.css", "style.css", testOrigin + "/style.css"}
	f := newFixture(t, opts)

	if err := f.proxy.Install(context.Background()); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if n := f.fetcher.callCount(); n != 1 {
		t.Errorf("Expected 1 fetch, got %d", n)
	}
}

func TestActivateDeletesForeignGenerations(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	stale := map[string]*domain.CachedResponse{"GET x": {Status: 200}}
	for _, name := range []string{"drinks-static-v1.1", "drinks-dynamic-v1.1", "unrelated"} {
		if err := f.storage.PutAll(ctx, name, stale); err != nil {
			t.Fatalf("PutAll failed: %v", err)
		}
	}

	if err := f.proxy.Install(ctx); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	names, err := f.storage.Names(ctx)
	if err != nil {
		t.Fatalf("Names failed: %v", err)
	}
	expected := []string{"drinks-static-v1.2"}
	if !slices.Equal(names, expected) {
		t.Errorf("Expected %v, got %v", expected, names)
	}
}

func TestActivateWithoutInstall(t *testing.T) {
	f := newFixture(t, defaultOptions())
	if err := f.proxy.Activate(context.Background()); !errors.Is(err, domain.ErrNotInstalled) {
		t.Errorf("Expected ErrNotInstalled, got %v", err)
	}
}

func TestInstallRestoresExistingGeneration(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	entries := map[string]*domain.CachedResponse{
		domain.RequestKey("GET", testOrigin+"/index.html"): {Status: 200, Body: []byte("cached")},
	}
	if err := f.storage.PutAll(ctx, "drinks-static-v1.2", entries); err != nil {
		t.Fatalf("PutAll failed: %v", err)
	}

	f.fetcher.setOffline(true)
	if err := f.proxy.Install(ctx); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if n := f.fetcher.callCount(); n != 0 {
		t.Errorf("Expected no fetches, got %d", n)
	}
	if f.proxy.Phase() != PhaseActive {
		t.Errorf("Expected phase active, got %s", f.proxy.Phase())
	}
}

func TestInstallSameVersionIsNoOp(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	if err := f.proxy.Install(ctx); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	before := f.fetcher.callCount()
	if err := f.proxy.Install(ctx); err != nil {
		t.Fatalf("second Install failed: %v", err)
	}
	if after := f.fetcher.callCount(); after != before {
		t.Errorf("Expected no new fetches, got %d", after-before)
	}
}

func TestUpdateWaitsForSkipWaiting(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	if err := f.proxy.Install(ctx); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if err := f.proxy.Update(ctx, "v1.3", []string{"/index.html"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	msgs := f.notifier.messages()
	if len(msgs) != 1 || msgs[0].Type != MsgUpdateAvailable || msgs[0].Version != "v1.3" {
		t.Errorf("Expected one UPDATE_AVAILABLE for v1.3, got %+v", msgs)
	}

	status := f.proxy.Status()
	if status.Version != "v1.2" || status.WaitingVersion != "v1.3" {
		t.Errorf("Expected active v1.2 waiting v1.3, got %+v", status)
	}

	reply, err := f.proxy.HandleMessage(ctx, Message{Type: MsgSkipWaiting})
	if err != nil {
		t.Fatalf("SKIP_WAITING failed: %v", err)
	}
	if reply != nil {
		t.Errorf("Expected no reply, got %v", reply)
	}

	expected := []string{"drinks-static-v1.3", "drinks-dynamic-v1.3"}
	if names := f.proxy.CacheNames(); !slices.Equal(names, expected) {
		t.Errorf("Expected %v, got %v", expected, names)
	}

	names, _ := f.storage.Names(ctx)
	if slices.Contains(names, "drinks-static-v1.2") {
		t.Errorf("Expected v1.2 generation deleted, got %v", names)
	}
}

func TestUpdateAutoActivates(t *testing.T) {
	opts := defaultOptions()
	opts.AutoActivateUpdates = true
	f := newFixture(t, opts)
	ctx := context.Background()

	if err := f.proxy.Install(ctx); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if err := f.proxy.Update(ctx, "v2", []string{"/index.html"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if v := f.proxy.Status().Version; v != "v2" {
		t.Errorf("Expected v2 active, got %s", v)
	}
}

func TestUpdateFailureKeepsActiveVersion(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	if err := f.proxy.Install(ctx); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	err := f.proxy.Update(ctx, "v1.3", []string{"/missing"})
	if !errors.Is(err, domain.ErrInstallFailed) {
		t.Fatalf("Expected ErrInstallFailed, got %v", err)
	}

	status := f.proxy.Status()
	if status.Version != "v1.2" || status.WaitingVersion != "" {
		t.Errorf("Expected v1.2 active and nothing waiting, got %+v", status)
	}
	if len(f.notifier.messages()) != 0 {
		t.Error("Expected no broadcast for a failed update")
	}
}

func TestUpdateBeforeInstall(t *testing.T) {
	f := newFixture(t, defaultOptions())
	if err := f.proxy.Update(context.Background(), "v2", nil); !errors.Is(err, domain.ErrNotInstalled) {
		t.Errorf("Expected ErrNotInstalled, got %v", err)
	}
}

func TestSkipWaitingWithNothingWaiting(t *testing.T) {
	f := newFixture(t, defaultOptions())
	if err := f.proxy.SkipWaiting(context.Background()); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
}

func TestHandleMessage(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	reply, err := f.proxy.HandleMessage(ctx, Message{Type: MsgGetCacheNames})
	if err != nil {
		t.Fatalf("GET_CACHE_NAMES failed: %v", err)
	}
	names, ok := reply.(CacheNamesReply)
	if !ok {
		t.Fatalf("Expected CacheNamesReply, got %T", reply)
	}
	expected := []string{"drinks-static-v1.2", "drinks-dynamic-v1.2"}
	if !slices.Equal(names.CacheNames, expected) {
		t.Errorf("Expected %v, got %v", expected, names.CacheNames)
	}

	if _, err := f.proxy.HandleMessage(ctx, Message{Type: "PING"}); !errors.Is(err, domain.ErrUnknownMessage) {
		t.Errorf("Expected ErrUnknownMessage, got %v", err)
	}
}

// hookedStorage runs afterPutAll once a generation is committed
type hookedStorage struct {
	*store.CacheStore
	afterPutAll func(name string)
}

func (s *hookedStorage) PutAll(ctx context.Context, name string, entries map[string]*domain.CachedResponse) error {
	if err := s.CacheStore.PutAll(ctx, name, entries); err != nil {
		return err
	}
	if s.afterPutAll != nil {
		s.afterPutAll(name)
	}
	return nil
}

func TestSkipWaitingDuringUpdateKeepsNewGeneration(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	hooked := &hookedStorage{CacheStore: f.storage}
	p, err := New(defaultOptions(), hooked, f.fetcher, f.notifier, log.NullLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := p.Install(ctx); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if err := p.Update(ctx, "v2", []string{"/index.html"}); err != nil {
		t.Fatalf("Update v2 failed: %v", err)
	}

	// A client activates v2 while v3 is being committed
	done := make(chan error, 1)
	hooked.afterPutAll = func(name string) {
		if name == "drinks-static-v3" {
			go func() { done <- p.SkipWaiting(ctx) }()
		}
	}
	if err := p.Update(ctx, "v3", []string{"/index.html"}); err != nil {
		t.Fatalf("Update v3 failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("SkipWaiting failed: %v", err)
	}
	hooked.afterPutAll = nil

	if err := p.SkipWaiting(ctx); err != nil {
		t.Fatalf("SkipWaiting failed: %v", err)
	}
	if v := p.Status().Version; v != "v3" {
		t.Fatalf("Expected v3 active, got %s", v)
	}

	names, err := f.storage.Names(ctx)
	if err != nil {
		t.Fatalf("Names failed: %v", err)
	}
	if !slices.Equal(names, []string{"drinks-static-v3"}) {
		t.Errorf("Expected [drinks-static-v3], got %v", names)
	}

	f.fetcher.setOffline(true)
	nav := get(testOrigin + "/missing-page")
	nav.Navigate = true
	resp, source, err := p.Handle(ctx, nav)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if source != SourceFallback || resp.Status != http.StatusOK || string(resp.Body) != "<html>index</html>" {
		t.Errorf("Expected cached entry page, got %s %d %q", source, resp.Status, resp.Body)
	}
}

func TestCleanupSparesRunningInstall(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	if err := f.proxy.Install(ctx); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	f.proxy.mu.Lock()
	f.proxy.beginInstallLocked("v2")
	f.proxy.mu.Unlock()

	entries := map[string]*domain.CachedResponse{"GET x": {Status: 200}}
	if err := f.storage.PutAll(ctx, "drinks-static-v2", entries); err != nil {
		t.Fatalf("PutAll failed: %v", err)
	}
	if err := f.storage.PutAll(ctx, "drinks-static-v1.1", entries); err != nil {
		t.Fatalf("PutAll failed: %v", err)
	}

	f.proxy.cleanup(ctx)

	names, _ := f.storage.Names(ctx)
	if !slices.Contains(names, "drinks-static-v2") {
		t.Errorf("Expected running install's generation kept, got %v", names)
	}
	if slices.Contains(names, "drinks-static-v1.1") {
		t.Errorf("Expected stale generation deleted, got %v", names)
	}
}

func TestInstallWithRetryRecovers(t *testing.T) {
	f := newFixture(t, defaultOptions())
	f.fetcher.setOffline(true)

	done := make(chan error, 1)
	go func() {
		done <- f.proxy.InstallWithRetry(context.Background(), Backoff{Initial: time.Millisecond, Max: 5 * time.Millisecond})
	}()

	deadline := time.Now().Add(5 * time.Second)
	for f.fetcher.callCount() < 4 {
		if time.Now().After(deadline) {
			t.Fatal("Expected install attempts while offline")
		}
		time.Sleep(time.Millisecond)
	}
	if f.proxy.Phase() == PhaseActive {
		t.Fatal("Expected no activation while offline")
	}

	f.fetcher.setOffline(false)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("InstallWithRetry failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Expected install to succeed once online")
	}
	if f.proxy.Phase() != PhaseActive {
		t.Errorf("Expected phase active, got %s", f.proxy.Phase())
	}
}

func TestInstallWithRetryStopsOnCancel(t *testing.T) {
	f := newFixture(t, defaultOptions())
	f.fetcher.setOffline(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.proxy.InstallWithRetry(ctx, Backoff{Initial: time.Millisecond, Max: time.Millisecond})
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Expected retry loop to stop")
	}
}

func TestSetReleaseBeforeInstall(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	if err := f.proxy.SetRelease(ctx, "v2", []string{"/index.html"}); err != nil {
		t.Fatalf("SetRelease failed: %v", err)
	}
	if err := f.proxy.Install(ctx); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if v := f.proxy.Status().Version; v != "v2" {
		t.Errorf("Expected v2 installed, got %s", v)
	}
	if n := f.fetcher.callCount(); n != 1 {
		t.Errorf("Expected only the new asset list fetched, got %d fetches", n)
	}
}

func TestSetReleaseAfterInstallUpdates(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	if err := f.proxy.Install(ctx); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if err := f.proxy.SetRelease(ctx, "v1.3", []string{"/index.html"}); err != nil {
		t.Fatalf("SetRelease failed: %v", err)
	}

	status := f.proxy.Status()
	if status.Version != "v1.2" || status.WaitingVersion != "v1.3" {
		t.Errorf("Expected active v1.2 waiting v1.3, got %+v", status)
	}
	msgs := f.notifier.messages()
	if len(msgs) != 1 || msgs[0].Type != MsgUpdateAvailable {
		t.Errorf("Expected UPDATE_AVAILABLE, got %+v", msgs)
	}

	// Same version again changes nothing
	before := f.fetcher.callCount()
	if err := f.proxy.SetRelease(ctx, "v1.2", []string{"/style.css"}); err != nil {
		t.Fatalf("SetRelease failed: %v", err)
	}
	if f.fetcher.callCount() != before {
		t.Error("Expected no fetches for an unchanged version")
	}
}
