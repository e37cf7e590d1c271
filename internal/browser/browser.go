// Package browser orchestrates a browsing session: it owns the filter state,
// drives the filter engine and the favorites controller, and pushes views to
// a renderer.
package browser

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/drinks/internal/catalog"
	"github.com/mmcdole/drinks/internal/domain"
	"github.com/mmcdole/drinks/internal/favorites"
	"github.com/mmcdole/drinks/internal/filter"
)

// DefaultSearchDebounce is the quiet period before a typed search applies
const DefaultSearchDebounce = 300 * time.Millisecond

const maxSuggestions = 3

// Option configures a Browser
type Option func(*Browser)

// WithEngine sets the filter engine (default: pt-BR collation)
func WithEngine(e *filter.Engine) Option {
	return func(b *Browser) { b.engine = e }
}

// WithSearchDebounce sets the search quiet period. Zero applies searches immediately.
func WithSearchDebounce(d time.Duration) Option {
	return func(b *Browser) { b.debounce = d }
}

// WithScheduler replaces the timer source used for debouncing
func WithScheduler(s Scheduler) Option {
	return func(b *Browser) { b.scheduler = s }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(b *Browser) { b.logger = l }
}

// WithLoadError records that the catalog failed to load, so Start renders
// an error state instead of an empty list
func WithLoadError(err error) Option {
	return func(b *Browser) { b.loadErr = err }
}

// Browser is a single browsing session.
//
// Every operation runs as one turn: the state is mutated and the visible
// list recomputed under a lock, then the renderer is called with the lock
// released. Views carry increasing versions so a renderer can discard one
// that arrives after a newer one.
type Browser struct {
	catalog   *catalog.Catalog
	favorites *favorites.Controller
	renderer  domain.Renderer
	engine    *filter.Engine
	debounce  time.Duration
	scheduler Scheduler
	logger    *slog.Logger
	loadErr   error

	mu      sync.Mutex
	state   domain.FilterState
	visible []domain.Drink
	version uint64

	// Pending debounced search
	pending     Timer
	pendingTerm string
	searchSeq   uint64
}

// New creates a browser over cat. A nil renderer discards output.
func New(cat *catalog.Catalog, favs *favorites.Controller, renderer domain.Renderer, opts ...Option) *Browser {
	b := &Browser{
		catalog:   cat,
		favorites: favs,
		renderer:  renderer,
		debounce:  DefaultSearchDebounce,
		scheduler: SystemScheduler{},
		state:     domain.DefaultFilterState(),
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.renderer == nil {
		b.renderer = domain.NoOpRenderer{}
	}
	if b.engine == nil {
		b.engine = filter.MustEngine(filter.DefaultLocale)
	}
	if b.favorites == nil {
		b.favorites = favorites.NewController(nil, b.logger)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Start loads favorites and renders the initial list
func (b *Browser) Start() {
	var notes []domain.Notification

	if err := b.favorites.Load(); err != nil {
		notes = append(notes, domain.Notification{
			Level:   domain.LevelWarn,
			Message: "Não foi possível carregar os favoritos",
		})
	}

	switch {
	case b.loadErr != nil:
		b.logger.Error("catalog unavailable", "error", b.loadErr)
		notes = append(notes, domain.Notification{
			Level:   domain.LevelError,
			Message: "Erro ao carregar drinks",
		})
	case b.catalog.Len() == 0:
		b.logger.Warn("catalog is empty")
		notes = append(notes, domain.Notification{
			Level:   domain.LevelWarn,
			Message: "Nenhum drink disponível",
		})
	}

	b.mu.Lock()
	view := b.recomputeLocked()
	b.mu.Unlock()

	b.renderer.Render(view)
	for _, n := range notes {
		b.renderer.Notify(n)
	}
}

// SelectFacet sets one facet and re-renders. An empty value resets the facet.
func (b *Browser) SelectFacet(facet domain.Facet, value string) {
	b.mu.Lock()
	b.state = facet.With(b.state, value)
	view := b.recomputeLocked()
	b.mu.Unlock()

	b.logger.Debug("facet selected", "facet", facet.String(), "value", facet.Value(view.State))
	b.renderer.Render(view)
}

// SetSearch records a raw search input. The search applies once no further
// input has arrived for the debounce period; each call restarts the wait.
func (b *Browser) SetSearch(term string) {
	b.mu.Lock()

	b.cancelPendingLocked()
	b.pendingTerm = term
	seq := b.searchSeq

	if b.debounce <= 0 {
		view := b.applySearchLocked()
		b.mu.Unlock()
		b.renderer.Render(view)
		return
	}

	b.pending = b.scheduler.AfterFunc(b.debounce, func() {
		b.fireSearch(seq)
	})
	b.mu.Unlock()
}

// FlushSearch applies a pending search immediately. It does nothing when no
// search is pending.
func (b *Browser) FlushSearch() {
	b.mu.Lock()
	if b.pending == nil {
		b.mu.Unlock()
		return
	}
	b.pending.Stop()
	view := b.applySearchLocked()
	b.mu.Unlock()

	b.renderer.Render(view)
}

// fireSearch is the debounce callback. A callback superseded by a later
// SetSearch, FlushSearch or ClearAll finds a different sequence and exits.
func (b *Browser) fireSearch(seq uint64) {
	b.mu.Lock()
	if seq != b.searchSeq || b.pending == nil {
		b.mu.Unlock()
		return
	}
	view := b.applySearchLocked()
	b.mu.Unlock()

	b.renderer.Render(view)
}

// applySearchLocked commits the pending term. Must hold b.mu.
func (b *Browser) applySearchLocked() domain.View {
	b.state = b.state.WithSearch(b.pendingTerm)
	b.pending = nil
	b.pendingTerm = ""
	b.searchSeq++
	return b.recomputeLocked()
}

// cancelPendingLocked drops any scheduled search. Must hold b.mu.
func (b *Browser) cancelPendingLocked() {
	if b.pending != nil {
		b.pending.Stop()
		b.pending = nil
	}
	b.pendingTerm = ""
	b.searchSeq++
}

// ClearAll resets every facet and the search in a single transition,
// discarding any pending search
func (b *Browser) ClearAll() {
	b.mu.Lock()
	b.cancelPendingLocked()
	b.state = domain.DefaultFilterState()
	view := b.recomputeLocked()
	b.mu.Unlock()

	b.renderer.Render(view)
}

// ToggleFavorite flips a drink's favorite state. The renderer is told about
// the single item immediately; the full list is re-rendered only when the
// change affects membership or ordering.
func (b *Browser) ToggleFavorite(id string) error {
	if _, ok := b.catalog.Get(id); !ok {
		return fmt.Errorf("%w: %s", domain.ErrDrinkNotFound, id)
	}

	b.mu.Lock()
	res, err := b.favorites.Toggle(id, b.state.Category)
	var view domain.View
	if res.NeedsRecompute {
		view = b.recomputeLocked()
	}
	b.mu.Unlock()

	b.renderer.FavoriteChanged(id, res.Favorite)
	if res.Favorite {
		b.renderer.Notify(domain.Notification{Level: domain.LevelInfo, Message: "Adicionado aos favoritos!"})
	} else {
		b.renderer.Notify(domain.Notification{Level: domain.LevelInfo, Message: "Removido dos favoritos!"})
	}
	if err != nil {
		b.renderer.Notify(domain.Notification{Level: domain.LevelError, Message: "Não foi possível salvar os favoritos"})
	}
	if res.NeedsRecompute {
		b.renderer.Render(view)
	}

	return err
}

// ToggleFavoritesView switches the category between the favorites view and All
func (b *Browser) ToggleFavoritesView() {
	b.mu.Lock()
	next := domain.Favorites
	if b.state.Category == domain.Favorites {
		next = domain.All
	}
	b.state = domain.FacetCategory.With(b.state, next)
	view := b.recomputeLocked()
	b.mu.Unlock()

	b.renderer.Render(view)
}

// OpenDetail shows the detail overlay for a drink
func (b *Browser) OpenDetail(id string) error {
	d, ok := b.catalog.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrDrinkNotFound, id)
	}
	b.renderer.ShowDetail(d, b.favorites.IsFavorite(id))
	return nil
}

// State returns the committed filter state
func (b *Browser) State() domain.FilterState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Visible returns the current visible list in display order
func (b *Browser) Visible() []domain.Drink {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Drink, len(b.visible))
	copy(out, b.visible)
	return out
}

// Options returns the menu values for a facet, collated by the engine's locale
func (b *Browser) Options(facet domain.Facet) []string {
	return b.catalog.Options(facet, b.engine.Comparator())
}

// recomputeLocked recomputes the visible list and builds the next view.
// Must hold b.mu.
func (b *Browser) recomputeLocked() domain.View {
	favs := b.favorites.Snapshot()
	drinks := b.catalog.Drinks()

	b.visible = b.engine.ComputeVisible(drinks, favs, b.state)
	b.version++

	items := make([]domain.VisibleItem, len(b.visible))
	for i, d := range b.visible {
		items[i] = domain.VisibleItem{Drink: d, Favorite: favs.Has(d.ID)}
	}

	view := domain.View{
		Version:       b.version,
		Items:         items,
		State:         b.state,
		ActiveFilters: filter.ActiveFilters(b.state),
		Err:           b.loadErr,
	}
	if len(items) == 0 && b.state.SearchTerm != "" {
		view.Suggestions = b.engine.Suggest(drinks, b.state.SearchTerm, maxSuggestions)
	}
	if view.Err == nil && len(drinks) == 0 {
		view.Err = domain.ErrEmptyCatalog
	}
	return view
}
