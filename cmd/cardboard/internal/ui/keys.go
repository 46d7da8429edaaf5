package ui

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keyboard shortcuts
type KeyMap struct {
	Reset      key.Binding
	Center     key.Binding
	Fit        key.Binding
	SeeThrough key.Binding
	Link       key.Binding
	Back       key.Binding
	Clear      key.Binding
	ZoomIn     key.Binding
	ZoomOut    key.Binding
	Align      key.Binding
	Help       key.Binding
	Quit       key.Binding

	Confirm key.Binding
	Cancel  key.Binding
}

var DefaultKeyMap = KeyMap{
	Reset: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reset view"),
	),
	Center: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "center"),
	),
	Fit: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "fit all"),
	),
	SeeThrough: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "see-through"),
	),
	Link: key.NewBinding(
		key.WithKeys("l"),
		key.WithHelp("l", "link mode"),
	),
	Back: key.NewBinding(
		key.WithKeys("backspace", "b"),
		key.WithHelp("b", "up a level"),
	),
	Clear: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "clear selection"),
	),
	ZoomIn: key.NewBinding(
		key.WithKeys("+", "="),
		key.WithHelp("+", "zoom in"),
	),
	ZoomOut: key.NewBinding(
		key.WithKeys("-"),
		key.WithHelp("-", "zoom out"),
	),
	Align: key.NewBinding(
		key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8"),
		key.WithHelp("1-8", "align selection"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "q"),
		key.WithHelp("q", "quit"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "save label"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
}

// ShortHelp implements help.KeyMap
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Link, k.SeeThrough, k.Back, k.Fit, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Reset, k.Center, k.Fit, k.ZoomIn, k.ZoomOut},
		{k.Link, k.SeeThrough, k.Back, k.Clear, k.Align},
		{k.Help, k.Quit},
	}
}

type editorKeys struct{ KeyMap }

func (k editorKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Confirm, k.Cancel}
}

func (k editorKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
