package browser

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mmcdole/drinks/internal/domain"
)

// TextRenderer writes plain listings, for non-interactive output
type TextRenderer struct {
	mu          sync.Mutex
	w           io.Writer
	lastVersion uint64
}

var _ domain.Renderer = (*TextRenderer)(nil)

func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w}
}

// Render prints one line per visible drink. Views older than the last
// printed one are ignored.
func (r *TextRenderer) Render(view domain.View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if view.Version != 0 && view.Version <= r.lastVersion {
		return
	}
	r.lastVersion = view.Version

	if view.Err != nil {
		fmt.Fprintf(r.w, "error: %v\n", view.Err)
		return
	}

	if view.Empty() {
		fmt.Fprintln(r.w, "Nenhum drink encontrado")
		if len(view.Suggestions) > 0 {
			fmt.Fprintf(r.w, "Você quis dizer: %s?\n", strings.Join(view.Suggestions, ", "))
		}
		return
	}

	for _, item := range view.Items {
		marker := " "
		if item.Favorite {
			marker = "♥"
		}
		fmt.Fprintf(r.w, "%s %s %-24s %s\n", marker, item.Drink.DisplayEmoji(), item.Drink.Name, item.Drink.Category)
	}
	if view.ActiveFilters > 0 {
		fmt.Fprintf(r.w, "%d drinks, %d ativos\n", len(view.Items), view.ActiveFilters)
	}
}

func (r *TextRenderer) FavoriteChanged(id string, favorite bool) {}

// ShowDetail prints the full recipe
func (r *TextRenderer) ShowDetail(d domain.Drink, favorite bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.w, "%s %s\n", d.DisplayEmoji(), d.Name)
	fmt.Fprintln(r.w, d.DisplayDescription())
	if d.Glass != "" {
		fmt.Fprintf(r.w, "Copo: %s\n", d.Glass)
	}
	if d.Technique != "" {
		fmt.Fprintf(r.w, "Técnica: %s\n", d.Technique)
	}
	if len(d.Ingredients) > 0 {
		fmt.Fprintln(r.w, "Ingredientes:")
		for _, ing := range d.Ingredients {
			fmt.Fprintf(r.w, "  - %s\n", ing)
		}
	}
	if len(d.Steps) > 0 {
		fmt.Fprintln(r.w, "Modo de preparo:")
		for i, step := range d.Steps {
			fmt.Fprintf(r.w, "  %d. %s\n", i+1, step)
		}
	}
}

// Notify prints warnings and errors; info messages are dropped
func (r *TextRenderer) Notify(n domain.Notification) {
	if n.Level == domain.LevelInfo {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, n.Message)
}
