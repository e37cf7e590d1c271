package domain

// Renderer is the rendering collaborator driven by the browser.
// Implementations must not call back into the browser synchronously.
type Renderer interface {
	// Render draws the full visible list
	Render(view View)

	// FavoriteChanged updates a single drink's favorite marker without a full render
	FavoriteChanged(id string, favorite bool)

	// ShowDetail opens the detail overlay for a drink
	ShowDetail(drink Drink, favorite bool)

	// Notify shows a transient, non-blocking notification
	Notify(n Notification)
}

// NoOpRenderer discards everything (for testing/batch operations).
type NoOpRenderer struct{}

func (NoOpRenderer) Render(View)                  {}
func (NoOpRenderer) FavoriteChanged(string, bool) {}
func (NoOpRenderer) ShowDetail(Drink, bool)       {}
func (NoOpRenderer) Notify(Notification)          {}
