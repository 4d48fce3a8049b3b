package inbox

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Move    key.Binding
	Open    key.Binding
	Back    key.Binding
	Archive key.Binding
	Trash   key.Binding
	Read    key.Binding
	Sync    key.Binding
	Unread  key.Binding
	Quit    key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Move:    key.NewBinding(key.WithKeys("up", "k", "down", "j"), key.WithHelp("↑/↓", "move")),
		Open:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Back:    key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "back")),
		Archive: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "archive")),
		Trash:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "trash")),
		Read:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "mark read")),
		Sync:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sync")),
		Unread:  key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "unread only")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) list() []key.Binding {
	return []key.Binding{k.Move, k.Open, k.Archive, k.Trash, k.Read, k.Sync, k.Unread, k.Quit}
}

func (k keyMap) detail() []key.Binding {
	return []key.Binding{k.Back, k.Archive, k.Trash, k.Read, k.Quit}
}
