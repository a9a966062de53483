package tui

import "strings"

// History keeps submitted input for Up/Down recall. While the player is
// browsing, the line they were typing is kept as a draft and comes back
// when they move past the newest entry.
type History struct {
	entries []string
	limit   int
	cursor  int // -1 while not browsing
	draft   string
}

// NewHistory creates a history holding at most limit entries.
func NewHistory(limit int) *History {
	return &History{
		entries: make([]string, 0, limit),
		limit:   limit,
		cursor:  -1,
	}
}

// Push records a submitted line and stops browsing. Blank lines, repeat
// commands, and consecutive duplicates are not recorded.
func (h *History) Push(cmd string) {
	h.Reset()
	cmd = strings.TrimSpace(cmd)
	switch strings.ToLower(cmd) {
	case "", "again", "g":
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == cmd {
		return
	}
	h.entries = append(h.entries, cmd)
	if len(h.entries) > h.limit {
		h.entries = h.entries[len(h.entries)-h.limit:]
	}
}

// Prev moves to the next older entry. current is the line being edited; it
// is kept as the draft when browsing starts. At the oldest entry Prev keeps
// returning it.
func (h *History) Prev(current string) (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	switch {
	case h.cursor == -1:
		h.draft = current
		h.cursor = len(h.entries) - 1
	case h.cursor > 0:
		h.cursor--
	}
	return h.entries[h.cursor], true
}

// Next moves to the next newer entry. Moving past the newest entry ends
// browsing and returns the draft. It returns false when not browsing.
func (h *History) Next() (string, bool) {
	if h.cursor == -1 {
		return "", false
	}
	h.cursor++
	if h.cursor >= len(h.entries) {
		draft := h.draft
		h.Reset()
		return draft, true
	}
	return h.entries[h.cursor], true
}

// Reset stops browsing and forgets the draft.
func (h *History) Reset() {
	h.cursor = -1
	h.draft = ""
}

// Len returns the number of stored entries.
func (h *History) Len() int { return len(h.entries) }
