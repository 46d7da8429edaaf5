package model

// Cursor tracks which subtree is being viewed plus the parents visited to get
// there. Only the application context moves it, in response to navigation
// intents.
type Cursor struct {
	Current string   `json:"current" yaml:"current"`
	History []string `json:"history,omitempty" yaml:"history,omitempty"`
}

// NewCursor returns a cursor at the root with no history
func NewCursor() Cursor {
	return Cursor{Current: RootID}
}

// Descend enters id, remembering the current level
func (c Cursor) Descend(id string) Cursor {
	hist := make([]string, len(c.History), len(c.History)+1)
	copy(hist, c.History)
	return Cursor{Current: id, History: append(hist, c.Current)}
}

// Back returns to the previous level. At the root it returns c unchanged and
// false.
func (c Cursor) Back() (Cursor, bool) {
	if len(c.History) == 0 {
		return c, false
	}
	last := len(c.History) - 1
	hist := make([]string, last)
	copy(hist, c.History[:last])
	return Cursor{Current: c.History[last], History: hist}, true
}

// Depth is the number of levels below the root
func (c Cursor) Depth() int {
	return len(c.History)
}
