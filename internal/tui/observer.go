package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/drinks/internal/domain"
)

const eventBacklog = 64

// ChannelRenderer adapts domain.Renderer to channels for Bubble Tea.
//
// Views are coalesced: only the newest view is kept and a single pending
// signal tells the program to pick it up, so a burst of renders never
// blocks the browser and the last one is never lost. Other events go
// through a buffered channel and are dropped if it is full.
type ChannelRenderer struct {
	mu     sync.Mutex
	latest domain.View
	dirty  chan struct{}
	events chan tea.Msg
}

var _ domain.Renderer = (*ChannelRenderer)(nil)

func NewChannelRenderer() *ChannelRenderer {
	return &ChannelRenderer{
		dirty:  make(chan struct{}, 1),
		events: make(chan tea.Msg, eventBacklog),
	}
}

// Render stores view if it is newer than the stored one
func (r *ChannelRenderer) Render(view domain.View) {
	r.mu.Lock()
	if view.Version > r.latest.Version {
		r.latest = view
	}
	r.mu.Unlock()

	select {
	case r.dirty <- struct{}{}:
	default: // A signal is already pending
	}
}

func (r *ChannelRenderer) FavoriteChanged(id string, favorite bool) {
	r.send(FavoriteChangedMsg{ID: id, Favorite: favorite})
}

func (r *ChannelRenderer) ShowDetail(drink domain.Drink, favorite bool) {
	r.send(ShowDetailMsg{Drink: drink, Favorite: favorite})
}

func (r *ChannelRenderer) Notify(n domain.Notification) {
	r.send(NotificationMsg{Notification: n})
}

func (r *ChannelRenderer) send(msg tea.Msg) {
	select {
	case r.events <- msg:
	default: // Non-blocking if channel full
	}
}

// Latest returns the newest view received
func (r *ChannelRenderer) Latest() domain.View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}

// Wait returns a command that blocks until the next renderer event
func (r *ChannelRenderer) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-r.dirty:
			return ViewMsg{View: r.Latest()}
		case msg := <-r.events:
			return msg
		}
	}
}
