package loader

import (
	"fmt"
	"strings"

	"github.com/nathoo/parley/engine/rules"
	"github.com/nathoo/parley/types"
)

// ValidationError collects all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

func (e *ValidationError) errorf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

func (e *ValidationError) warnf(format string, args ...any) {
	e.Warnings = append(e.Warnings, fmt.Sprintf(format, args...))
}

// validate checks the collected content for referential integrity and
// consistency. It returns the warnings, and a *ValidationError if there
// were any errors.
func validate(p *pack) ([]string, error) {
	ve := &ValidationError{}

	// Exactly one Game with a title.
	switch len(p.games) {
	case 0:
		ve.errorf("no Game definition found")
	case 1:
		if p.games[0].def.Title == "" {
			ve.errorf("Game.title is required (%s)", p.games[0].source)
		}
	default:
		sources := make([]string, len(p.games))
		for i, g := range p.games {
			sources[i] = g.source
		}
		ve.errorf("Game defined more than once (%s)", strings.Join(sources, ", "))
	}

	// NPC IDs unique.
	npcs := map[string]string{}
	for _, n := range p.npcs {
		if n.def.ID == "" {
			ve.errorf("NPC with empty id (%s)", n.source)
			continue
		}
		if prev, dup := npcs[n.def.ID]; dup {
			ve.errorf("duplicate NPC ID %q (%s, %s)", n.def.ID, prev, n.source)
			continue
		}
		npcs[n.def.ID] = n.source
	}

	// Dialogue IDs unique.
	dialogues := map[string]string{}
	for _, d := range p.dialogues {
		if d.id == "" {
			ve.errorf("dialogue with empty id (%s)", d.source)
			continue
		}
		if prev, dup := dialogues[d.id]; dup {
			ve.errorf("duplicate dialogue ID %q (%s, %s)", d.id, prev, d.source)
			continue
		}
		dialogues[d.id] = d.source
	}

	// NPC candidates exist.
	referenced := map[string]bool{}
	for _, n := range p.npcs {
		if len(n.def.Dialogues) == 0 {
			ve.warnf("NPC %q has no dialogues", n.def.ID)
		}
		for _, id := range n.def.Dialogues {
			referenced[id] = true
			if _, ok := dialogues[id]; !ok {
				ve.errorf("NPC %q references undefined dialogue %q", n.def.ID, id)
			}
		}
	}

	for _, d := range p.dialogues {
		validateDialogue(d, npcs, ve)
		if d.id != "" && !referenced[d.id] {
			ve.warnf("dialogue %q is not used by any NPC", d.id)
		}
	}

	if len(ve.Errors) > 0 {
		return ve.Warnings, ve
	}
	return ve.Warnings, nil
}

func validateDialogue(d dialogueDraft, npcs map[string]string, ve *ValidationError) {
	where := fmt.Sprintf("dialogue %q", d.id)

	for _, problem := range d.problems {
		ve.errorf("%s", problem)
	}

	validateConditions(d.requires, where, npcs, ve)

	if len(d.lines) == 0 {
		ve.errorf("%s has no lines", where)
	}

	for _, flag := range d.completes {
		if flag == "" {
			ve.errorf("%s has an empty completion flag", where)
		}
	}

	// Line labels unique; EndLabel reserved.
	labels := map[string]bool{}
	for i, ld := range d.lines {
		label := ld.def.ID
		if label == "" {
			continue
		}
		switch {
		case label == EndLabel:
			ve.errorf("%s line %d uses reserved label %q", where, i+1, EndLabel)
		case labels[label]:
			ve.errorf("%s has duplicate line label %q", where, label)
		}
		labels[label] = true
	}

	for i, ld := range d.lines {
		lineWhere := fmt.Sprintf("%s line %d", where, i+1)
		if strings.TrimSpace(ld.def.Text) == "" {
			ve.warnf("%s has no text", lineWhere)
		}
		for j, cd := range ld.choices {
			choiceWhere := fmt.Sprintf("%s choice %d", lineWhere, j+1)
			if strings.TrimSpace(cd.def.Text) == "" {
				ve.errorf("%s has no text", choiceWhere)
			}
			if cd.next != "" && cd.next != EndLabel && !labels[cd.next] {
				ve.errorf("%s jumps to undefined line label %q", choiceWhere, cd.next)
			}
			if npc := cd.def.RelationshipNPC; npc != "" {
				if _, ok := npcs[npc]; !ok {
					ve.errorf("%s changes relationship with undefined NPC %q", choiceWhere, npc)
				}
			}
			if cd.def.RelationshipNPC != "" && cd.def.RelationshipDelta == 0 {
				ve.warnf("%s names an NPC but has no relationship change", choiceWhere)
			}
		}
	}
}

func validateConditions(conditions []types.Condition, where string, npcs map[string]string, ve *ValidationError) {
	for _, cond := range conditions {
		validateCondition(cond, where, npcs, ve)
	}
}

func validateCondition(cond types.Condition, where string, npcs map[string]string, ve *ValidationError) {
	if !rules.Known(cond.Kind) {
		ve.errorf("%s uses unknown condition kind %q", where, cond.Kind)
		return
	}

	switch cond.Kind {
	case types.CondNot:
		if cond.Inner == nil {
			ve.errorf("%s has a not condition without an inner condition", where)
			return
		}
		validateCondition(*cond.Inner, where, npcs, ve)
		return
	case types.CondRelationshipAtLeast, types.CondRelationshipBelow:
		if cond.NPC != "" {
			if _, ok := npcs[cond.NPC]; !ok {
				ve.errorf("%s condition %s references undefined NPC %q", where, cond.Kind, cond.NPC)
			}
		}
	}

	if !rules.WellFormed(cond) {
		ve.errorf("%s has a malformed %s condition", where, cond.Kind)
	}
}
