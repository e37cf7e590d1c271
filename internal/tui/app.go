package tui

import (
	"log/slog"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/drinks/internal/domain"
	"github.com/mmcdole/drinks/internal/tui/components"
	"github.com/mmcdole/drinks/internal/tui/styles"
)

// Browser is the session the TUI drives
type Browser interface {
	Start()
	SelectFacet(facet domain.Facet, value string)
	SetSearch(term string)
	FlushSearch()
	ClearAll()
	ToggleFavorite(id string) error
	ToggleFavoritesView()
	OpenDetail(id string) error
	Options(facet domain.Facet) []string
	State() domain.FilterState
}

// ApplicationState represents the current input mode
type ApplicationState int

const (
	StateLoading ApplicationState = iota
	StateBrowsing
	StateSearching
	StateMenu
	StateDetail
	StateHelp
)

// Vertical chrome: header, search line, footer
const chromeHeight = 3

// Model is the main Bubble Tea model for the application
type Model struct {
	State ApplicationState

	browser  Browser
	renderer *ChannelRenderer
	logger   *slog.Logger

	// Last applied view
	view    domain.View
	applied uint64

	// List position
	cursor int
	offset int

	// UI Components
	Search textinput.Model
	Menu   components.FacetMenu
	Detail components.Detail
	Help   help.Model

	// Dimensions
	Width  int
	Height int

	// Status line
	StatusMsg   string
	StatusLevel domain.NotificationLevel
	statusSeq   int
}

// NewModel creates a new application model. renderer must be the one the
// browser was constructed with.
func NewModel(b Browser, renderer *ChannelRenderer, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}

	ti := textinput.New()
	ti.Placeholder = "buscar drinks..."
	ti.Prompt = "/ "
	ti.PromptStyle = styles.FilterPromptStyle
	ti.TextStyle = styles.FilterStyle
	ti.CharLimit = 64

	return Model{
		State:    StateLoading,
		browser:  b,
		renderer: renderer,
		logger:   logger,
		Search:   ti,
		Menu:     components.NewFacetMenu(),
		Detail:   components.NewDetail(),
		Help:     help.New(),
	}
}

// Init starts the browser and begins listening for renderer events
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		StartCmd(m.browser),
		m.renderer.Wait(),
	)
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Help.Width = msg.Width
		m.Detail.SetSize(msg.Width, msg.Height)
		m.clampCursor()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case startedMsg:
		if m.State == StateLoading {
			m.State = StateBrowsing
		}
		return m, nil

	case ViewMsg:
		m.applyView(msg.View)
		return m, m.renderer.Wait()

	case FavoriteChangedMsg:
		m.setFavorite(msg.ID, msg.Favorite)
		return m, m.renderer.Wait()

	case ShowDetailMsg:
		m.Detail.Show(msg.Drink, msg.Favorite)
		m.State = StateDetail
		return m, m.renderer.Wait()

	case NotificationMsg:
		cmd := m.setStatus(msg.Notification)
		return m, tea.Batch(cmd, m.renderer.Wait())

	case ClearStatusMsg:
		if msg.Seq == m.statusSeq {
			m.StatusMsg = ""
		}
		return m, nil
	}

	return m, nil
}

// applyView replaces the list unless v is older than what is shown
func (m *Model) applyView(v domain.View) {
	if v.Version <= m.applied {
		m.logger.Debug("dropping stale view", "version", v.Version, "applied", m.applied)
		return
	}

	// Keep the cursor on the same drink when it is still visible
	selected := m.selectedID()
	m.view = v
	m.applied = v.Version
	m.cursor = 0
	for i, item := range v.Items {
		if item.Drink.ID == selected {
			m.cursor = i
			break
		}
	}
	m.clampCursor()

	if m.State == StateLoading {
		m.State = StateBrowsing
	}
}

// setFavorite updates one marker without waiting for a full render
func (m *Model) setFavorite(id string, favorite bool) {
	for i := range m.view.Items {
		if m.view.Items[i].Drink.ID == id {
			m.view.Items[i].Favorite = favorite
		}
	}
	m.Detail.SetFavorite(id, favorite)
}

func (m *Model) setStatus(n domain.Notification) tea.Cmd {
	m.statusSeq++
	m.StatusMsg = n.Message
	m.StatusLevel = n.Level
	return ClearStatusCmd(m.statusSeq, StatusTimeout)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.State {
	case StateHelp:
		m.State = StateBrowsing
		return m, nil

	case StateDetail:
		return m.handleDetailKey(msg)

	case StateMenu:
		handled, sel := m.Menu.HandleKey(msg.String())
		if sel != nil {
			m.browser.SelectFacet(sel.Facet, sel.Value)
		}
		if !m.Menu.IsVisible() {
			m.State = StateBrowsing
		}
		if handled {
			return m, nil
		}

	case StateSearching:
		return m.handleSearchKey(msg)
	}

	return m.handleBrowseKey(msg)
}

func (m Model) handleBrowseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, Keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, Keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, Keys.PageUp):
		m.moveCursor(-m.listHeight())
	case key.Matches(msg, Keys.PageDown):
		m.moveCursor(m.listHeight())
	case key.Matches(msg, Keys.Home):
		m.moveCursor(-len(m.view.Items))
	case key.Matches(msg, Keys.End):
		m.moveCursor(len(m.view.Items))

	case key.Matches(msg, Keys.Search):
		m.State = StateSearching
		return m, m.Search.Focus()

	case key.Matches(msg, Keys.Category):
		m.openMenu(domain.FacetCategory)
	case key.Matches(msg, Keys.Glass):
		m.openMenu(domain.FacetGlass)
	case key.Matches(msg, Keys.Technique):
		m.openMenu(domain.FacetTechnique)

	case key.Matches(msg, Keys.Favorite):
		if id := m.selectedID(); id != "" {
			return m, toggleFavoriteCmd(m.browser, id)
		}
	case key.Matches(msg, Keys.FavoritesView):
		m.browser.ToggleFavoritesView()
	case key.Matches(msg, Keys.ClearFilters):
		m.Search.SetValue("")
		m.browser.ClearAll()
	case key.Matches(msg, Keys.Detail):
		if id := m.selectedID(); id != "" {
			return m, openDetailCmd(m.browser, id)
		}

	case key.Matches(msg, Keys.Escape):
		if m.Search.Value() != "" {
			m.Search.SetValue("")
			m.browser.SetSearch("")
			m.browser.FlushSearch()
		}
	case key.Matches(msg, Keys.Help):
		m.State = StateHelp
	}

	return m, nil
}

// handleSearchKey routes typing to the search box. Every edit is passed to
// the browser, which applies it once typing pauses; enter applies at once.
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.browser.FlushSearch()
		m.Search.Blur()
		m.State = StateBrowsing
		return m, nil
	case "esc":
		m.Search.Blur()
		m.State = StateBrowsing
		return m, nil
	case "down", "up":
		m.Search.Blur()
		m.State = StateBrowsing
		return m.handleBrowseKey(msg)
	}

	before := m.Search.Value()
	var cmd tea.Cmd
	m.Search, cmd = m.Search.Update(msg)
	if after := m.Search.Value(); after != before {
		m.browser.SetSearch(after)
	}
	return m, cmd
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, Keys.Escape), key.Matches(msg, Keys.Quit), key.Matches(msg, Keys.Detail):
		m.Detail.Hide()
		m.State = StateBrowsing
		return m, nil
	case key.Matches(msg, Keys.Favorite):
		if id := m.Detail.DrinkID(); id != "" {
			return m, toggleFavoriteCmd(m.browser, id)
		}
		return m, nil
	}
	return m, m.Detail.Update(msg)
}

func (m *Model) openMenu(f domain.Facet) {
	m.Menu.Show(f, m.browser.Options(f), f.Value(m.browser.State()))
	m.State = StateMenu
}

func (m *Model) selectedID() string {
	if m.cursor < 0 || m.cursor >= len(m.view.Items) {
		return ""
	}
	return m.view.Items[m.cursor].Drink.ID
}

func (m *Model) moveCursor(delta int) {
	m.cursor += delta
	m.clampCursor()
}

// clampCursor keeps the cursor on an item and inside the visible window
func (m *Model) clampCursor() {
	n := len(m.view.Items)
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}

	h := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	if m.offset > max(n-h, 0) {
		m.offset = max(n-h, 0)
	}
}

func (m Model) listHeight() int {
	return max(m.Height-chromeHeight, 1)
}
