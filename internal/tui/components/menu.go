package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/drinks/internal/domain"
	"github.com/mmcdole/drinks/internal/tui/styles"
	"github.com/sahilm/fuzzy"
)

const (
	menuWidth       = 28
	menuVisibleRows = 12
)

// MenuSelection is the user's confirmed choice
type MenuSelection struct {
	Facet domain.Facet
	Value string // domain.All clears the facet
}

// FacetMenu is a popup listing the values of one facet. Typing narrows the
// list with fuzzy matching; the first row always clears the facet.
type FacetMenu struct {
	visible bool
	facet   domain.Facet
	options []string // Without the clear row
	active  string
	query   string
	matches []string
	cursor  int
	offset  int
}

func NewFacetMenu() FacetMenu {
	return FacetMenu{}
}

// Show opens the menu for facet with options, marking active as selected
func (m *FacetMenu) Show(facet domain.Facet, options []string, active string) {
	m.visible = true
	m.facet = facet
	m.options = options
	m.active = active
	m.query = ""
	m.refilter()

	m.cursor = 0
	m.offset = 0
	for i, opt := range m.matches {
		if opt == active {
			m.cursor = i
			break
		}
	}
	m.scroll()
}

// Hide dismisses the menu
func (m *FacetMenu) Hide() {
	m.visible = false
}

// IsVisible returns whether the menu is shown
func (m FacetMenu) IsVisible() bool {
	return m.visible
}

// Facet returns the facet the menu was opened for
func (m FacetMenu) Facet() domain.Facet {
	return m.facet
}

// Query returns the current narrowing text
func (m FacetMenu) Query() string {
	return m.query
}

// Rows returns the rows currently listed, clear row first when shown
func (m FacetMenu) Rows() []string {
	return m.matches
}

// HandleKey processes a key press, returns (handled, selection).
// If selection is non-nil, the user confirmed a choice.
func (m *FacetMenu) HandleKey(key string) (handled bool, selection *MenuSelection) {
	if !m.visible {
		return false, nil
	}

	switch key {
	case "down", "ctrl+n", "tab":
		if m.cursor < len(m.matches)-1 {
			m.cursor++
		}
	case "up", "ctrl+p", "shift+tab":
		if m.cursor > 0 {
			m.cursor--
		}
	case "enter":
		if len(m.matches) == 0 {
			return true, nil
		}
		m.visible = false
		return true, &MenuSelection{Facet: m.facet, Value: m.matches[m.cursor]}
	case "esc":
		m.visible = false
	case "backspace":
		if m.query != "" {
			r := []rune(m.query)
			m.query = string(r[:len(r)-1])
			m.refilter()
			m.cursor = 0
		}
	default:
		if len([]rune(key)) == 1 {
			m.query += key
			m.refilter()
			m.cursor = 0
		}
	}
	m.scroll()

	return true, nil // consume all keys when visible
}

// refilter rebuilds matches from the query. With no query every option is
// listed in collation order behind the clear row; otherwise options are
// ranked by fuzzy score.
func (m *FacetMenu) refilter() {
	if m.query == "" {
		m.matches = append([]string{domain.All}, m.options...)
		return
	}

	found := fuzzy.Find(strings.ToLower(m.query), lowerAll(m.options))
	m.matches = make([]string, len(found))
	for i, match := range found {
		m.matches[i] = m.options[match.Index]
	}
}

func (m *FacetMenu) scroll() {
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+menuVisibleRows {
		m.offset = m.cursor - menuVisibleRows + 1
	}
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// View renders the menu
func (m FacetMenu) View() string {
	if !m.visible {
		return ""
	}

	var lines []string
	if m.query != "" {
		lines = append(lines, styles.FilterPromptStyle.Render("> ")+styles.FilterStyle.Render(m.query))
	}

	if len(m.matches) == 0 {
		lines = append(lines, styles.DimStyle.Render(styles.Pad("sem resultados", menuWidth)))
	}

	end := m.offset + menuVisibleRows
	if end > len(m.matches) {
		end = len(m.matches)
	}
	for i := m.offset; i < end; i++ {
		opt := m.matches[i]
		label := opt
		if opt == domain.All {
			label = "Todos"
		}

		prefix := "  "
		if opt == m.active {
			prefix = "✓ "
		}
		text := styles.Pad(styles.Truncate(prefix+label, menuWidth), menuWidth)

		switch {
		case i == m.cursor:
			lines = append(lines, lipgloss.NewStyle().
				Foreground(styles.White).
				Background(styles.SlateLight).
				Render(text))
		case opt == m.active:
			lines = append(lines, styles.AccentStyle.Render(text))
		default:
			lines = append(lines, styles.SubtitleStyle.Render(text))
		}
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Amber).
		Background(styles.SlateDark).
		Padding(0, 1).
		Render(styles.ModalTitleStyle.Render(FacetTitle(m.facet)) + "\n" + strings.Join(lines, "\n"))
}

// FacetTitle returns the menu title for a facet
func FacetTitle(f domain.Facet) string {
	return f.Label()
}
