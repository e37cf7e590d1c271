package tui

import "github.com/mmcdole/drinks/internal/domain"

// Message types for the TUI

// ViewMsg carries a new visible list from the browser
type ViewMsg struct {
	View domain.View
}

// FavoriteChangedMsg updates one drink's favorite marker
type FavoriteChangedMsg struct {
	ID       string
	Favorite bool
}

// ShowDetailMsg opens the recipe overlay
type ShowDetailMsg struct {
	Drink    domain.Drink
	Favorite bool
}

// NotificationMsg shows a transient status message
type NotificationMsg struct {
	Notification domain.Notification
}

// ClearStatusMsg clears the status line if it still shows message Seq
type ClearStatusMsg struct {
	Seq int
}

// startedMsg signals that the browser finished its initial load
type startedMsg struct{}
