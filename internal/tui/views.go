package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/drinks/internal/domain"
	"github.com/mmcdole/drinks/internal/tui/components"
	"github.com/mmcdole/drinks/internal/tui/styles"
)

var (
	roseColor = styles.Rose
	dimColor  = styles.DimGray
)

// View renders the application
func (m Model) View() string {
	if m.Width == 0 {
		return ""
	}

	switch m.State {
	case StateHelp:
		return m.renderHelp()
	case StateDetail:
		return m.Detail.View()
	case StateMenu:
		return lipgloss.Place(m.Width, m.Height, lipgloss.Center, lipgloss.Center, m.Menu.View())
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderSearch())
	b.WriteString("\n")
	b.WriteString(m.renderList())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// renderHeader shows the title, active filter chips and the result count
func (m Model) renderHeader() string {
	left := styles.TitleStyle.Render("🍸 Drinks")

	var chips []string
	state := m.view.State
	for _, f := range domain.Facets {
		v := f.Value(state)
		if v == "" || v == domain.All {
			continue
		}
		label := v
		if f == domain.FacetCategory && v == domain.Favorites {
			label = styles.FavoriteChar + " Favoritos"
		}
		chips = append(chips, styles.ChipStyle.Render(components.FacetTitle(f)+": "+label))
	}
	if len(chips) > 0 {
		left += " " + strings.Join(chips, " ")
	}

	var count string
	if m.view.ActiveFilters > 0 {
		count = fmt.Sprintf("%d drinks · %d ativos", len(m.view.Items), m.view.ActiveFilters)
	} else {
		count = fmt.Sprintf("%d drinks", len(m.view.Items))
	}
	right := styles.DimStyle.Render(count)

	gap := max(m.Width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderSearch() string {
	if m.State == StateSearching || m.Search.Value() != "" {
		return m.Search.View()
	}
	return styles.DimStyle.Render("/ buscar")
}

// renderList renders the visible window of the list, or the empty and
// error states
func (m Model) renderList() string {
	h := m.listHeight()
	var lines []string

	switch {
	case m.State == StateLoading:
		lines = append(lines, styles.DimStyle.Render("Carregando..."))
	case m.view.Err != nil:
		lines = append(lines, styles.ErrorStyle.Render("Erro ao carregar drinks: "+m.view.Err.Error()))
	case m.view.Empty():
		lines = append(lines, m.renderEmpty()...)
	default:
		end := min(m.offset+h, len(m.view.Items))
		for i := m.offset; i < end; i++ {
			lines = append(lines, m.renderRow(m.view.Items[i], i == m.cursor))
		}
	}

	for len(lines) < h {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderEmpty() []string {
	var lines []string
	if m.view.State.Category == domain.Favorites {
		lines = append(lines, styles.SubtitleStyle.Render("Nenhum favorito ainda"))
		lines = append(lines, styles.DimStyle.Render("Use f para favoritar um drink"))
		return lines
	}

	lines = append(lines, styles.SubtitleStyle.Render("Nenhum drink encontrado"))
	if len(m.view.Suggestions) > 0 {
		lines = append(lines, styles.DimStyle.Render("Você quis dizer: ")+
			styles.AccentStyle.Render(strings.Join(m.view.Suggestions, ", "))+
			styles.DimStyle.Render("?"))
	}
	if m.view.ActiveFilters > 0 {
		lines = append(lines, styles.DimStyle.Render("Use x para limpar os filtros"))
	}
	return lines
}

func (m Model) renderRow(item domain.VisibleItem, selected bool) string {
	marker := " "
	if item.Favorite {
		marker = styles.FavoriteChar
	}

	nameWidth := max(m.Width/3, 12)
	descWidth := max(m.Width-nameWidth-28, 0)

	parts := []styles.RowPart{
		{Text: marker + " ", Foreground: &roseColor},
		{Text: item.Drink.DisplayEmoji() + " "},
		{Text: styles.Pad(styles.Truncate(item.Drink.Name, nameWidth), nameWidth) + " "},
		{Text: styles.Pad(styles.Truncate(item.Drink.Category, 16), 16) + " ", Foreground: &dimColor},
	}
	if descWidth > 0 {
		parts = append(parts, styles.RowPart{
			Text:       styles.Truncate(item.Drink.DisplayDescription(), descWidth),
			Foreground: &dimColor,
		})
	}
	return styles.RenderListRow(parts, selected, m.Width)
}

// renderFooter renders the status message on the left and key hints on
// the right
func (m Model) renderFooter() string {
	var left string
	if m.StatusMsg != "" {
		switch m.StatusLevel {
		case domain.LevelError:
			left = styles.ErrorStyle.Render(m.StatusMsg)
		case domain.LevelWarn:
			left = styles.WarnStyle.Render(m.StatusMsg)
		default:
			left = styles.SuccessStyle.Render(m.StatusMsg)
		}
	}

	right := m.Help.ShortHelpView(Keys.ShortHelp())

	gap := m.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return left
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderHelp() string {
	content := styles.ModalTitleStyle.Render("Atalhos") + "\n" + m.Help.FullHelpView(Keys.FullHelp()) +
		"\n\n" + styles.DimStyle.Render("Pressione qualquer tecla para voltar")
	return lipgloss.Place(m.Width, m.Height,
		lipgloss.Center, lipgloss.Center,
		styles.ModalStyle.Render(content))
}
