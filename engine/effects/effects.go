// Package effects applies choice and completion side effects to player state.
// Every write goes through here so the engine can report what changed.
package effects

import (
	"github.com/nathoo/parley/engine/state"
	"github.com/nathoo/parley/types"
)

// ApplyChoice applies a choice's side effects in order: flag first, then
// relationship. A zero delta is not applied. npcID is the NPC being talked
// to and is the relationship target unless the choice names another.
func ApplyChoice(st state.Store, c types.ChoiceDef, npcID string) []types.Effect {
	var applied []types.Effect

	if c.Flag != "" {
		st.SetFlag(c.Flag, true)
		applied = append(applied, types.Effect{Kind: types.EffectSetFlag, Flag: c.Flag})
	}

	if c.RelationshipDelta != 0 {
		target := RelationshipTarget(c, npcID)
		st.ModifyRelationship(target, c.RelationshipDelta)
		applied = append(applied, types.Effect{
			Kind:  types.EffectModifyRelationship,
			NPC:   target,
			Delta: c.RelationshipDelta,
		})
	}

	return applied
}

// ApplyCompletion sets every completion flag of a dialogue to true.
func ApplyCompletion(st state.Store, d types.DialogueDef) []types.Effect {
	var applied []types.Effect
	for _, flag := range d.CompletionFlags {
		if flag == "" {
			continue
		}
		st.SetFlag(flag, true)
		applied = append(applied, types.Effect{Kind: types.EffectSetFlag, Flag: flag})
	}
	return applied
}

// RelationshipTarget resolves which NPC a choice's relationship delta applies to.
func RelationshipTarget(c types.ChoiceDef, npcID string) string {
	if c.RelationshipNPC != "" {
		return c.RelationshipNPC
	}
	return npcID
}
