package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nathoo/parley/cli"
)

// statusText returns the left and right halves of the status bar. While a
// conversation is active it shows the NPC, the line position and the
// player's standing with that NPC.
func (m Model) statusText() (left, right string) {
	eng := m.interp.Engine
	player := m.interp.Player

	s, ok := eng.Session()
	if !ok {
		available := 0
		for _, npc := range m.interp.Defs.NPCs() {
			if eng.HasAvailableDialogue(npc.ID) {
				available++
			}
		}
		left = fmt.Sprintf(" %s | Not talking", m.title())
		right = fmt.Sprintf("%d want to talk ", available)
		return left, right
	}

	name := s.NPCID
	if npc, ok := eng.CurrentNPC(); ok {
		name = cli.DisplayName(npc)
	}
	left = fmt.Sprintf(" %s | Line %d/%d", name, s.LineIndex+1, eng.LineCount())
	right = fmt.Sprintf("Rel: %+d ", player.GetRelationship(s.NPCID))
	if line, ok := eng.CurrentLine(); ok && len(line.Choices) > 0 {
		right = fmt.Sprintf("Choose 1-%d | %s", len(line.Choices), right)
	}
	return left, right
}

func (m Model) title() string {
	if t := m.interp.Defs.Game.Title; t != "" {
		return t
	}
	return "parley"
}

// renderStatusBar produces a full-width inverted status line.
func (m Model) renderStatusBar() string {
	left, right := m.statusText()

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}
