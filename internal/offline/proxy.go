// Package offline implements a cache-first offline proxy for the web app:
// versioned cache generations, an install/activate lifecycle, request
// interception with an offline fallback, and a client message channel.
package offline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/mmcdole/drinks/internal/domain"
)

// DefaultOfflineMessage is the message carried by the synthetic offline response
const DefaultOfflineMessage = "Esta funcionalidade não está disponível offline"

// Message types exchanged with clients
const (
	MsgSkipWaiting     = "SKIP_WAITING"
	MsgGetCacheNames   = "GET_CACHE_NAMES"
	MsgUpdateAvailable = "UPDATE_AVAILABLE"
)

const installConcurrency = 4

// Phase is the proxy's lifecycle phase
type Phase int

const (
	PhaseUninstalled Phase = iota
	PhaseInstalling
	PhaseInstalled // Installed, waiting to activate
	PhaseActive
	PhaseUpdating // Active, with a new version installing
)

func (p Phase) String() string {
	switch p {
	case PhaseUninstalled:
		return "uninstalled"
	case PhaseInstalling:
		return "installing"
	case PhaseInstalled:
		return "installed"
	case PhaseActive:
		return "active"
	case PhaseUpdating:
		return "updating"
	default:
		return "unknown"
	}
}

// Options configures a Proxy
type Options struct {
	Origin         string   // Upstream app origin, e.g. "http://localhost:8000"
	CachePrefix    string   // Generation name prefix, default "drinks"
	Version        string   // Initial version, e.g. "v1.2"
	EntryPage      string   // Served to offline navigations, default "/index.html"
	StaticAssets   []string // Pre-cache manifest
	AllowedOrigins []string // External origins eligible for caching

	DiscoverAssets      bool // Scan the entry page for more assets before install
	AutoActivateUpdates bool // Activate updates without waiting for SKIP_WAITING
	OfflineMessage      string
}

// release is one installed version
type release struct {
	version string
	gens    Generations
}

// Status is a snapshot of the proxy state
type Status struct {
	Phase          string   `json:"phase"`
	Version        string   `json:"version,omitempty"`
	WaitingVersion string   `json:"waitingVersion,omitempty"`
	CacheNames     []string `json:"cacheNames"`
	Clients        int      `json:"clients"`
}

// Proxy is the offline cache proxy
type Proxy struct {
	opts     Options
	origin   *url.URL
	allowed  map[string]bool
	storage  domain.CacheStorage
	fetcher  domain.Fetcher
	notifier domain.Notifier
	logger   *slog.Logger

	mu         sync.RWMutex
	phase      Phase
	active     *release
	waiting    *release
	busy       bool         // An install is running
	installing *Generations // Generations the running install writes

	// Held while an install commits and while cleanup lists and deletes,
	// so cleanup never removes a generation being committed
	commitMu sync.Mutex
}

// Backoff bounds the delay between install attempts
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// DefaultBackoff retries after 1s, doubling up to one minute
var DefaultBackoff = Backoff{Initial: time.Second, Max: time.Minute}

// New creates an uninstalled proxy. notifier may be nil.
func New(opts Options, storage domain.CacheStorage, fetcher domain.Fetcher, notifier domain.Notifier, logger *slog.Logger) (*Proxy, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.CachePrefix == "" {
		opts.CachePrefix = "drinks"
	}
	if opts.EntryPage == "" {
		opts.EntryPage = "/index.html"
	}
	if opts.OfflineMessage == "" {
		opts.OfflineMessage = DefaultOfflineMessage
	}
	if opts.Version == "" {
		return nil, fmt.Errorf("version is required")
	}

	origin, err := parseOrigin(opts.Origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin: %w", err)
	}
	originURL, _ := url.Parse(origin)

	allowed := make(map[string]bool, len(opts.AllowedOrigins))
	for _, raw := range opts.AllowedOrigins {
		o, err := parseOrigin(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed origin: %w", err)
		}
		allowed[o] = true
	}

	return &Proxy{
		opts:     opts,
		origin:   originURL,
		allowed:  allowed,
		storage:  storage,
		fetcher:  fetcher,
		notifier: notifier,
		logger:   logger,
	}, nil
}

// Install pre-caches the configured version and activates it. A static
// generation already in storage for the version is reused without fetching.
// Once a version is active, Install is a no-op; later versions go through
// Update.
func (p *Proxy) Install(ctx context.Context) error {
	p.mu.Lock()
	if p.active != nil {
		p.mu.Unlock()
		return nil
	}
	if p.busy {
		p.mu.Unlock()
		return fmt.Errorf("%w: install already in progress", domain.ErrInstallFailed)
	}
	version := p.opts.Version
	assets := p.opts.StaticAssets
	p.beginInstallLocked(version)
	p.phase = PhaseInstalling
	p.mu.Unlock()

	var err error
	rel := p.restore(ctx, version)
	if rel == nil {
		rel, err = p.install(ctx, version, assets)
	}

	p.mu.Lock()
	p.endInstallLocked()
	if err != nil {
		p.phase = PhaseUninstalled
		p.mu.Unlock()
		return err
	}
	p.waiting = rel
	p.phase = PhaseInstalled
	p.mu.Unlock()

	// A first install takes control immediately
	if err := p.Activate(ctx); err != nil {
		return err
	}

	// SetRelease may have moved on while this version was installing
	p.mu.RLock()
	latest, latestAssets := p.opts.Version, p.opts.StaticAssets
	p.mu.RUnlock()
	if latest != version {
		if err := p.Update(ctx, latest, latestAssets); err != nil {
			p.logger.Error("update after install failed", "version", latest, "error", err)
		}
	}
	return nil
}

// InstallWithRetry calls Install until it succeeds or ctx is done, waiting
// between attempts with exponential backoff
func (p *Proxy) InstallWithRetry(ctx context.Context, backoff Backoff) error {
	if backoff.Initial <= 0 {
		backoff = DefaultBackoff
	}
	interval := backoff.Initial

	for {
		err := p.Install(ctx)
		if err == nil {
			return nil
		}
		p.logger.Warn("install failed, serving without cache", "error", err, "retry_in", interval)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		interval = min(interval*2, max(backoff.Max, backoff.Initial))
	}
}

// SetRelease changes the version the proxy should serve. Before the first
// activation it only replaces what Install will fetch; afterwards a new
// version is installed with Update. Generations are named by version, so a
// changed asset list under the same version is not installed.
func (p *Proxy) SetRelease(ctx context.Context, version string, assets []string) error {
	if version == "" {
		return fmt.Errorf("version is required")
	}

	p.mu.Lock()
	p.opts.Version = version
	p.opts.StaticAssets = append([]string(nil), assets...)
	active := p.active
	p.mu.Unlock()

	if active == nil {
		p.logger.Info("release changed before install", "version", version)
		return nil
	}
	if active.version == version {
		p.logger.Warn("release unchanged, bump the version to install new assets", "version", version)
		return nil
	}
	return p.Update(ctx, version, assets)
}

// Update installs a new version alongside the active one. The active version
// keeps serving until the new one is activated, either by a SKIP_WAITING
// message or immediately when AutoActivateUpdates is set. Connected clients
// are told with an UPDATE_AVAILABLE broadcast.
func (p *Proxy) Update(ctx context.Context, version string, assets []string) error {
	p.mu.Lock()
	if p.active == nil {
		p.mu.Unlock()
		return domain.ErrNotInstalled
	}
	if version == p.active.version {
		p.mu.Unlock()
		return nil
	}
	if p.busy {
		p.mu.Unlock()
		return fmt.Errorf("%w: install already in progress", domain.ErrInstallFailed)
	}
	p.beginInstallLocked(version)
	p.phase = PhaseUpdating
	p.mu.Unlock()

	rel, err := p.install(ctx, version, assets)

	p.mu.Lock()
	p.endInstallLocked()
	p.phase = PhaseActive
	if err != nil {
		p.mu.Unlock()
		return err
	}
	p.waiting = rel
	p.mu.Unlock()

	p.logger.Info("update installed", "version", version)
	if p.notifier != nil {
		p.notifier.Broadcast(domain.ClientMessage{Type: MsgUpdateAvailable, Version: version})
	}

	if p.opts.AutoActivateUpdates {
		return p.Activate(ctx)
	}
	return nil
}

// install fetches every asset and commits them in one storage operation.
// Any failure, including a non-2xx response, aborts without writing.
func (p *Proxy) install(ctx context.Context, version string, assets []string) (*release, error) {
	gens := GenerationNames(p.opts.CachePrefix, version)
	logger := p.logger.With("version", version, "cache", gens.Static)

	if p.opts.DiscoverAssets {
		assets = p.discover(ctx, assets)
	}

	urls, err := resolveAssets(p.origin, assets)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInstallFailed, err)
	}

	logger.Info("installing", "assets", len(urls))

	entries, err := p.fetchAll(ctx, urls)
	if err != nil {
		logger.Error("install failed", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrInstallFailed, err)
	}

	p.commitMu.Lock()
	err = p.storage.PutAll(ctx, gens.Static, entries)
	p.commitMu.Unlock()
	if err != nil {
		logger.Error("install failed", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrInstallFailed, err)
	}

	logger.Info("static assets cached", "count", len(entries))
	return &release{version: version, gens: gens}, nil
}

func (p *Proxy) beginInstallLocked(version string) {
	gens := GenerationNames(p.opts.CachePrefix, version)
	p.busy = true
	p.installing = &gens
}

func (p *Proxy) endInstallLocked() {
	p.busy = false
	p.installing = nil
}

// restore adopts a static generation left by a previous run of the same
// version, so a restart while offline keeps serving from cache. It returns
// nil when there is nothing to restore.
func (p *Proxy) restore(ctx context.Context, version string) *release {
	gens := GenerationNames(p.opts.CachePrefix, version)
	ok, err := p.storage.Has(ctx, gens.Static)
	if err != nil {
		p.logger.Warn("failed to check existing cache", "cache", gens.Static, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	p.logger.Info("restored installed version", "version", version, "cache", gens.Static)
	return &release{version: version, gens: gens}
}

// fetchAll fetches urls concurrently. The first failure cancels the rest.
func (p *Proxy) fetchAll(ctx context.Context, urls []string) (map[string]*domain.CachedResponse, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		entries  = make(map[string]*domain.CachedResponse, len(urls))
		firstErr error
		wg       sync.WaitGroup
	)
	semaphore := make(chan struct{}, installConcurrency)

	for _, u := range urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				return
			}

			req := &domain.Request{Method: http.MethodGet, URL: u}
			resp, err := p.fetcher.Fetch(ctx, req)
			if err == nil && !resp.OK() {
				err = fmt.Errorf("status %d", resp.Status)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("fetch %s: %w", u, err)
					cancel()
				}
				return
			}
			entries[req.Key()] = stamp(resp)
		}(u)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return entries, nil
}

// Activate promotes the waiting version and deletes every generation that
// is neither served nor still being installed
func (p *Proxy) Activate(ctx context.Context) error {
	p.mu.Lock()
	if p.waiting == nil {
		p.mu.Unlock()
		return domain.ErrNotInstalled
	}
	previous := p.active
	p.active = p.waiting
	p.waiting = nil
	if p.busy {
		p.phase = PhaseUpdating
	} else {
		p.phase = PhaseActive
	}
	version := p.active.version
	p.mu.Unlock()

	logger := p.logger.With("version", version)
	if previous != nil {
		logger = logger.With("previous", previous.version)
	}
	logger.Info("activated")

	p.cleanup(ctx)
	return nil
}

// retained reports whether a generation belongs to the active release, the
// waiting release, or a running install
func (p *Proxy) retained(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.active != nil && p.active.gens.Owns(name) {
		return true
	}
	if p.waiting != nil && p.waiting.gens.Owns(name) {
		return true
	}
	return p.installing != nil && p.installing.Owns(name)
}

// cleanup deletes generations nothing retains. Failures are logged; a
// leftover generation is harmless because lookups never name it.
func (p *Proxy) cleanup(ctx context.Context) {
	p.commitMu.Lock()
	defer p.commitMu.Unlock()

	names, err := p.storage.Names(ctx)
	if err != nil {
		p.logger.Warn("failed to list cache generations", "error", err)
		return
	}
	for _, name := range names {
		if p.retained(name) {
			continue
		}
		if err := p.storage.Delete(ctx, name); err != nil {
			p.logger.Warn("failed to delete old cache", "cache", name, "error", err)
			continue
		}
		p.logger.Info("deleted old cache", "cache", name)
	}
}

// SkipWaiting activates a waiting version, if any
func (p *Proxy) SkipWaiting(ctx context.Context) error {
	p.mu.RLock()
	waiting := p.waiting != nil
	p.mu.RUnlock()

	if !waiting {
		return nil
	}
	return p.Activate(ctx)
}

// CacheNames returns the generation names of the serving version, or of the
// configured version before the first install
func (p *Proxy) CacheNames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.active != nil {
		return p.active.gens.Names()
	}
	return GenerationNames(p.opts.CachePrefix, p.opts.Version).Names()
}

// Phase returns the current lifecycle phase
func (p *Proxy) Phase() Phase {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.phase
}

// Status returns a snapshot for diagnostics
func (p *Proxy) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Status{Phase: p.phase.String()}
	if p.active != nil {
		s.Version = p.active.version
		s.CacheNames = p.active.gens.Names()
	} else {
		s.CacheNames = []string{}
	}
	if p.waiting != nil {
		s.WaitingVersion = p.waiting.version
	}
	if counter, ok := p.notifier.(interface{ ClientCount() int }); ok {
		s.Clients = counter.ClientCount()
	}
	return s
}

// serving returns the generations to look up, or false when nothing is active
func (p *Proxy) serving() (Generations, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.active == nil {
		return Generations{}, false
	}
	return p.active.gens, true
}

// stamp records the storage time on a response about to be cached
func stamp(resp *domain.CachedResponse) *domain.CachedResponse {
	c := resp.Clone()
	c.StoredAt = time.Now().UTC()
	return c
}
