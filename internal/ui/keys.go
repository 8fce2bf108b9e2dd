package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap - клавиши экрана проверки.
type KeyMap struct {
	Quit         key.Binding
	ScrollUp     key.Binding
	ScrollDown   key.Binding
	FallbackOnly key.Binding
	ToggleHelp   key.Binding
}

// ShortHelp реализует help.KeyMap.
func (km KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{km.ScrollUp, km.ScrollDown, km.FallbackOnly, km.ToggleHelp, km.Quit}
}

// FullHelp реализует help.KeyMap.
func (km KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{km.ScrollUp, km.ScrollDown},
		{km.FallbackOnly, km.ToggleHelp},
		{km.Quit},
	}
}

// DefaultKeyMap возвращает дефолтный KeyMap.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "quit"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("up", "k", "pgup"),
			key.WithHelp("↑/k", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("down", "j", "pgdown"),
			key.WithHelp("↓/j", "scroll down"),
		),
		FallbackOnly: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "only fallback"),
		),
		ToggleHelp: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}
