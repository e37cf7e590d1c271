package tui

import (
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/drinks/internal/domain"
)

// StatusTimeout is how long a notification stays on the status line
const StatusTimeout = 3 * time.Second

// StartCmd loads favorites and renders the first list off the UI goroutine
func StartCmd(b Browser) tea.Cmd {
	return func() tea.Msg {
		b.Start()
		return startedMsg{}
	}
}

// ClearStatusCmd returns a command that clears status after a delay
func ClearStatusCmd(seq int, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return ClearStatusMsg{Seq: seq}
	})
}

// toggleFavoriteCmd toggles a favorite. Persistence failures are reported by
// the browser as a notification, so only a missing drink is surfaced here.
func toggleFavoriteCmd(b Browser, id string) tea.Cmd {
	return func() tea.Msg {
		if err := b.ToggleFavorite(id); err != nil && !errors.Is(err, domain.ErrPersistFailed) {
			return NotificationMsg{Notification: domain.Notification{
				Level:   domain.LevelError,
				Message: err.Error(),
			}}
		}
		return nil
	}
}

func openDetailCmd(b Browser, id string) tea.Cmd {
	return func() tea.Msg {
		if err := b.OpenDetail(id); err != nil {
			return NotificationMsg{Notification: domain.Notification{
				Level:   domain.LevelError,
				Message: err.Error(),
			}}
		}
		return nil
	}
}
