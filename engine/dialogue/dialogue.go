// Package dialogue picks which of an NPC's dialogues to start.
package dialogue

import (
	"github.com/nathoo/parley/engine/rules"
	"github.com/nathoo/parley/engine/state"
	"github.com/nathoo/parley/types"
)

// Select returns the first of the NPC's candidate dialogues, in authored
// order, whose conditions all hold. Candidate IDs the content does not
// resolve are skipped. Returns false if no candidate qualifies.
func Select(npc types.NPCDef, content state.Content, v state.View) (types.DialogueDef, bool) {
	for _, id := range npc.Dialogues {
		dlg, ok := content.Dialogue(id)
		if !ok {
			continue
		}
		if rules.EvalAllConditions(dlg.Requires, v) {
			return dlg, true
		}
	}
	return types.DialogueDef{}, false
}

// HasAvailable reports whether Select would find a dialogue.
func HasAvailable(npc types.NPCDef, content state.Content, v state.View) bool {
	_, ok := Select(npc, content, v)
	return ok
}

// Available returns the IDs of every eligible dialogue in authored order.
// The first entry, if any, is what Select returns.
func Available(npc types.NPCDef, content state.Content, v state.View) []string {
	var result []string
	for _, id := range npc.Dialogues {
		dlg, ok := content.Dialogue(id)
		if !ok {
			continue
		}
		if rules.EvalAllConditions(dlg.Requires, v) {
			result = append(result, id)
		}
	}
	return result
}
