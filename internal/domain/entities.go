package domain

import "strings"

// DefaultEmoji is shown when a drink has neither an image nor an emoji
const DefaultEmoji = "🍹"

// Drink represents a single catalog entry. Drinks are loaded once at startup
// and never mutated afterwards.
//
// JSON keys follow the catalog data file shipped with the web app.
type Drink struct {
	ID          string   `json:"id"`           // Stable identifier, used as the favorites join key
	Name        string   `json:"nome"`         // Display name, searched and collated
	Category    string   `json:"categoria"`    // Exactly one category per drink
	Description string   `json:"descricao"`    // Free text, searched
	Glass       string   `json:"glass"`        // Optional, substring-matched by the glass facet
	Technique   string   `json:"technique"`    // Optional, substring-matched by the technique facet
	Ingredients []string `json:"ingredientes"` // Detail view only
	Steps       []string `json:"preparo"`      // Detail view only
	ImageRef    string   `json:"imagem,omitempty"`
	Emoji       string   `json:"emoji,omitempty"`
}

// DisplayEmoji returns the emoji to show for this drink
func (d Drink) DisplayEmoji() string {
	if d.Emoji != "" {
		return d.Emoji
	}
	return DefaultEmoji
}

// PlaceholderDescription is shown for drinks without a description
const PlaceholderDescription = "Um drink especial para você descobrir."

// DisplayDescription returns the description or a placeholder when empty
func (d Drink) DisplayDescription() string {
	if strings.TrimSpace(d.Description) == "" {
		return PlaceholderDescription
	}
	return d.Description
}

// HasImage reports whether the drink carries an image reference
func (d Drink) HasImage() bool {
	return d.ImageRef != ""
}

// VisibleItem pairs a drink with its favorite membership at render time
type VisibleItem struct {
	Drink    Drink
	Favorite bool
}

// View is everything the rendering collaborator needs to draw the list.
// Version increases monotonically per browser; renderers drop views older
// than the last one they drew.
type View struct {
	Version       uint64
	Items         []VisibleItem
	State         FilterState
	ActiveFilters int
	Suggestions   []string // Only set when a search produced no results
	Err           error    // Set when the catalog could not be loaded
}

// Empty reports whether the view has no visible items
func (v View) Empty() bool {
	return len(v.Items) == 0
}

// NotificationLevel classifies transient notifications
type NotificationLevel int

const (
	LevelInfo NotificationLevel = iota
	LevelWarn
	LevelError
)

// Notification is a transient, non-blocking message for the user
type Notification struct {
	Level   NotificationLevel
	Message string
}
