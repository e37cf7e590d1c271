package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/drinks/internal/domain"
	"github.com/mmcdole/drinks/internal/tui/styles"
)

// Detail is the recipe overlay for one drink
type Detail struct {
	visible  bool
	drink    domain.Drink
	favorite bool
	vp       viewport.Model
	width    int
	height   int
}

func NewDetail() Detail {
	return Detail{vp: viewport.New(0, 0)}
}

// Show opens the overlay for d
func (d *Detail) Show(drink domain.Drink, favorite bool) {
	d.visible = true
	d.drink = drink
	d.favorite = favorite
	d.refresh()
	d.vp.GotoTop()
}

func (d *Detail) Hide() {
	d.visible = false
}

func (d Detail) IsVisible() bool {
	return d.visible
}

// DrinkID returns the id of the drink shown, or "" when hidden
func (d Detail) DrinkID() string {
	if !d.visible {
		return ""
	}
	return d.drink.ID
}

// SetFavorite updates the favorite marker if id is the drink shown
func (d *Detail) SetFavorite(id string, favorite bool) {
	if d.visible && d.drink.ID == id {
		d.favorite = favorite
		d.refresh()
	}
}

// SetSize sizes the overlay to fit within width x height
func (d *Detail) SetSize(width, height int) {
	d.width = width
	d.height = height
	d.vp.Width = max(width-8, 10)
	d.vp.Height = max(height-8, 3)
	d.refresh()
}

// Update forwards scroll keys to the viewport
func (d *Detail) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	d.vp, cmd = d.vp.Update(msg)
	return cmd
}

func (d *Detail) refresh() {
	d.vp.SetContent(RenderRecipe(d.drink, d.favorite, d.vp.Width))
}

// RenderRecipe formats a drink's full recipe
func RenderRecipe(drink domain.Drink, favorite bool, width int) string {
	var b strings.Builder

	title := drink.DisplayEmoji() + " " + drink.Name
	if favorite {
		title += " " + styles.FavoriteStyle.Render(styles.FavoriteChar)
	}
	b.WriteString(styles.TitleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(styles.AccentStyle.Render(drink.Category))
	b.WriteString("\n\n")

	b.WriteString(lipgloss.NewStyle().Width(width).Foreground(styles.LightGray).Render(drink.DisplayDescription()))
	b.WriteString("\n")

	if drink.Glass != "" || drink.Technique != "" {
		b.WriteString("\n")
		if drink.Glass != "" {
			b.WriteString(styles.DimStyle.Render("Copo: ") + drink.Glass + "\n")
		}
		if drink.Technique != "" {
			b.WriteString(styles.DimStyle.Render("Técnica: ") + drink.Technique + "\n")
		}
	}

	if len(drink.Ingredients) > 0 {
		b.WriteString("\n" + styles.SubtitleStyle.Bold(true).Render("Ingredientes") + "\n")
		for _, ing := range drink.Ingredients {
			b.WriteString("  • " + ing + "\n")
		}
	}

	if len(drink.Steps) > 0 {
		b.WriteString("\n" + styles.SubtitleStyle.Bold(true).Render("Modo de preparo") + "\n")
		step := lipgloss.NewStyle().Width(max(width-5, 10))
		for i, s := range drink.Steps {
			b.WriteString(fmt.Sprintf("  %d. ", i+1) + step.Render(s) + "\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// View renders the overlay centered in the configured area
func (d Detail) View() string {
	if !d.visible {
		return ""
	}
	footer := styles.DimStyle.Render("f favorito · esc fechar")
	box := styles.ModalStyle.Render(d.vp.View() + "\n\n" + footer)
	return lipgloss.Place(d.width, d.height, lipgloss.Center, lipgloss.Center, box)
}
