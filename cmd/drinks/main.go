package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/drinks/internal/browser"
	"github.com/mmcdole/drinks/internal/catalog"
	"github.com/mmcdole/drinks/internal/config"
	"github.com/mmcdole/drinks/internal/domain"
	"github.com/mmcdole/drinks/internal/favorites"
	"github.com/mmcdole/drinks/internal/filter"
	"github.com/mmcdole/drinks/internal/log"
	"github.com/mmcdole/drinks/internal/store"
	"github.com/mmcdole/drinks/internal/tui"
	"golang.org/x/term"
)

// Version is set at build time via -ldflags
var Version = "dev"

// listOptions selects what the non-interactive listing shows
type listOptions struct {
	force     bool
	category  string
	glass     string
	technique string
	search    string
	favorites bool
	detail    string
}

func main() {
	var (
		showVersion bool
		configPath  string
		list        listOptions
	)
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.BoolVar(&list.force, "list", false, "print the drink list and exit")
	flag.StringVar(&list.category, "category", "", "filter by category")
	flag.StringVar(&list.glass, "glass", "", "filter by glass")
	flag.StringVar(&list.technique, "technique", "", "filter by technique")
	flag.StringVar(&list.search, "search", "", "search name, category and description")
	flag.BoolVar(&list.favorites, "favorites", false, "list favorites only")
	flag.StringVar(&list.detail, "detail", "", "print the recipe of a drink by id")
	flag.Parse()

	if showVersion {
		fmt.Printf("drinks %s\n", Version)
		return
	}

	if err := run(configPath, list); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, list listOptions) error {
	// Load configuration
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Setup logger
	logger, closer, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	} else {
		defer closer.Close()
	}
	slog.SetDefault(logger)

	logger.Info("starting drinks", "version", Version)

	engine, err := filter.NewEngine(cfg.Catalog.Locale)
	if err != nil {
		return fmt.Errorf("invalid catalog locale: %w", err)
	}

	opts := []browser.Option{
		browser.WithEngine(engine),
		browser.WithLogger(logger),
	}

	cat, err := catalog.Load(cfg.Catalog.File)
	if err != nil {
		logger.Error("failed to load catalog", "file", cfg.Catalog.File, "error", err)
		cat, _ = catalog.New(nil)
		opts = append(opts, browser.WithLoadError(err))
	}

	prefs, err := store.NewPreferenceStore(cfg.Store.Path)
	if err != nil {
		// Another instance may hold the database; favorites still work for this session
		logger.Warn("failed to open preference store, favorites will not persist", "path", cfg.Store.Path, "error", err)
		prefs, _ = store.NewPreferenceStore("")
	}
	defer prefs.Close()

	favs := favorites.NewController(prefs, logger)

	if list.requested() || !term.IsTerminal(int(os.Stdout.Fd())) {
		return runList(cat, favs, opts, list)
	}

	opts = append(opts, browser.WithSearchDebounce(cfg.Browser.SearchDebounce))
	return runTUI(cat, favs, opts, logger)
}

func runTUI(cat *catalog.Catalog, favs *favorites.Controller, opts []browser.Option, logger *slog.Logger) error {
	renderer := tui.NewChannelRenderer()
	b := browser.New(cat, favs, renderer, opts...)
	model := tui.NewModel(b, renderer, logger)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
	)

	logger.Info("starting TUI")

	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Info("shutting down")
	return nil
}

// runList applies the flag filters and prints the resulting list, or one
// recipe when -detail is given
func runList(cat *catalog.Catalog, favs *favorites.Controller, opts []browser.Option, list listOptions) error {
	out := browser.NewTextRenderer(os.Stdout)
	final := &lastView{out: out, notes: browser.NewTextRenderer(os.Stderr)}

	opts = append(opts, browser.WithSearchDebounce(0))
	b := browser.New(cat, favs, final, opts...)
	b.Start()

	if list.detail != "" {
		return b.OpenDetail(list.detail)
	}

	if list.favorites {
		b.ToggleFavoritesView()
	} else if list.category != "" {
		b.SelectFacet(domain.FacetCategory, list.category)
	}
	if list.glass != "" {
		b.SelectFacet(domain.FacetGlass, list.glass)
	}
	if list.technique != "" {
		b.SelectFacet(domain.FacetTechnique, list.technique)
	}
	if list.search != "" {
		b.SetSearch(list.search)
	}

	out.Render(final.view)
	return nil
}

func (l listOptions) requested() bool {
	return l.force || l.category != "" || l.glass != "" || l.technique != "" ||
		l.search != "" || l.favorites || l.detail != ""
}

// lastView keeps only the final view so intermediate renders are not printed
type lastView struct {
	view  domain.View
	out   *browser.TextRenderer
	notes *browser.TextRenderer
}

func (r *lastView) Render(view domain.View) {
	r.view = view
}

func (r *lastView) FavoriteChanged(id string, favorite bool) {}

func (r *lastView) ShowDetail(d domain.Drink, favorite bool) {
	r.out.ShowDetail(d, favorite)
}

func (r *lastView) Notify(n domain.Notification) {
	r.notes.Notify(n)
}
