package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds every binding shown in the help line.
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	On      key.Binding
	Standby key.Binding
	Sleep   key.Binding
	Rescan  key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		On:      key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "on")),
		Standby: key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "stand by")),
		Sleep:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sleep")),
		Rescan:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.On, k.Standby, k.Sleep, k.Rescan, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.On, k.Standby, k.Sleep},
		{k.Rescan, k.Help, k.Quit},
	}
}
