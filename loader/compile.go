// Package loader loads Lua and YAML dialogue content into Go structs at
// startup. The Lua VM is discarded after loading: zero Lua at runtime.
package loader

import (
	"fmt"
	"math"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/parley/engine/state"
	"github.com/nathoo/parley/types"
)

// EndLabel is the reserved next label that jumps past the last line,
// ending the dialogue as completed.
const EndLabel = "end"

// pack is everything collected from all content files, before validation.
// Unlike state.Defs it keeps duplicates and unresolved labels so they can
// be reported.
type pack struct {
	games     []gameDraft
	npcs      []npcDraft
	dialogues []dialogueDraft
}

type gameDraft struct {
	source string
	def    types.GameDef
}

type npcDraft struct {
	source string
	def    types.NPCDef
}

type dialogueDraft struct {
	source    string
	id        string
	requires  []types.Condition
	completes []string
	lines     []lineDraft
	problems  []string // fields holding the wrong Lua type
}

type lineDraft struct {
	def     types.LineDef // Choices is filled by build
	choices []choiceDraft
}

type choiceDraft struct {
	def  types.ChoiceDef // Next is filled by build
	next string
}

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

// fieldReader reads typed fields from Lua tables, recording a problem for
// any field that is present but holds the wrong type.
type fieldReader struct {
	problems []string
}

func (r *fieldReader) mistyped(where, key, want string, v lua.LValue) {
	got := v.Type().String()
	switch v.(type) {
	case lua.LNumber, lua.LBool:
		got += " " + v.String()
	case lua.LString:
		got += fmt.Sprintf(" %q", v.String())
	}
	r.problems = append(r.problems, fmt.Sprintf("%s %s must be %s, got %s", where, key, want, got))
}

func (r *fieldReader) str(tbl *lua.LTable, key, where, want string) string {
	v := tbl.RawGetString(key)
	switch s := v.(type) {
	case lua.LString:
		return string(s)
	case *lua.LNilType:
		return ""
	default:
		r.mistyped(where, key, want, v)
		return ""
	}
}

func (r *fieldReader) boolean(tbl *lua.LTable, key, where string) bool {
	v := tbl.RawGetString(key)
	switch b := v.(type) {
	case lua.LBool:
		return bool(b)
	case *lua.LNilType:
		return false
	default:
		r.mistyped(where, key, "a boolean", v)
		return false
	}
}

// integer returns an integral number field, or 0 if missing. Fractional
// numbers are reported, not truncated.
func (r *fieldReader) integer(tbl *lua.LTable, key, where string) int {
	v := tbl.RawGetString(key)
	switch n := v.(type) {
	case lua.LNumber:
		f := float64(n)
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			r.mistyped(where, key, "an integer", v)
			return 0
		}
		return int(f)
	case *lua.LNilType:
		return 0
	default:
		r.mistyped(where, key, "an integer", v)
		return 0
	}
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	v := tbl.RawGetString(key)
	if t, ok := v.(*lua.LTable); ok {
		return t
	}
	return nil
}

// arrayTables returns the table elements of tbl's array part in order.
func arrayTables(tbl *lua.LTable) []*lua.LTable {
	if tbl == nil {
		return nil
	}
	var out []*lua.LTable
	for i := 1; i <= tbl.MaxN(); i++ {
		if t, ok := tbl.RawGetInt(i).(*lua.LTable); ok {
			out = append(out, t)
		}
	}
	return out
}

// getStrings returns the string elements of an array field in order.
func getStrings(tbl *lua.LTable, key string) []string {
	arr := getTable(tbl, key)
	if arr == nil {
		return nil
	}
	var out []string
	for i := 1; i <= arr.MaxN(); i++ {
		if s, ok := arr.RawGetInt(i).(lua.LString); ok {
			out = append(out, string(s))
		}
	}
	return out
}

// compileLua converts all collected Lua tables into drafts.
func compileLua(coll *collector, p *pack) {
	for _, raw := range coll.games {
		p.games = append(p.games, gameDraft{source: raw.source, def: compileGame(raw.table)})
	}
	for _, raw := range coll.npcs {
		p.npcs = append(p.npcs, npcDraft{
			source: raw.source,
			def: types.NPCDef{
				ID:        raw.id,
				Name:      getString(raw.table, "name"),
				Dialogues: getStrings(raw.table, "dialogues"),
			},
		})
	}
	for _, raw := range coll.dialogues {
		p.dialogues = append(p.dialogues, compileDialogue(raw))
	}
}

func compileGame(tbl *lua.LTable) types.GameDef {
	return types.GameDef{
		Title:   getString(tbl, "title"),
		Author:  getString(tbl, "author"),
		Version: getString(tbl, "version"),
		Intro:   getString(tbl, "intro"),
	}
}

func compileDialogue(raw rawTable) dialogueDraft {
	tbl := raw.table
	where := fmt.Sprintf("dialogue %q", raw.id)
	r := &fieldReader{}
	d := dialogueDraft{
		source:    raw.source,
		id:        raw.id,
		requires:  compileConditions(r, getTable(tbl, "requires"), where),
		completes: getStrings(tbl, "completes"),
	}
	for i, lineTbl := range arrayTables(getTable(tbl, "lines")) {
		lineWhere := fmt.Sprintf("%s line %d", where, i+1)
		line := lineDraft{def: types.LineDef{
			ID:      r.str(lineTbl, "id", lineWhere, "a string"),
			Speaker: r.str(lineTbl, "speaker", lineWhere, "a string"),
			Text:    r.str(lineTbl, "text", lineWhere, "a string"),
		}}
		for j, choiceTbl := range arrayTables(getTable(lineTbl, "choices")) {
			choiceWhere := fmt.Sprintf("%s choice %d", lineWhere, j+1)
			line.choices = append(line.choices, choiceDraft{
				def: types.ChoiceDef{
					Text:              r.str(choiceTbl, "text", choiceWhere, "a string"),
					Flag:              r.str(choiceTbl, "flag", choiceWhere, "a string"),
					RelationshipDelta: r.integer(choiceTbl, "relationship", choiceWhere),
					RelationshipNPC:   r.str(choiceTbl, "npc", choiceWhere, "an NPC id string"),
				},
				next: r.str(choiceTbl, "next", choiceWhere, "a line label string"),
			})
		}
		d.lines = append(d.lines, line)
	}
	d.problems = r.problems
	return d
}

func compileConditions(r *fieldReader, tbl *lua.LTable, where string) []types.Condition {
	var conditions []types.Condition
	for i, condTbl := range arrayTables(tbl) {
		conditions = append(conditions, compileCondition(r, condTbl, fmt.Sprintf("%s condition %d", where, i+1)))
	}
	return conditions
}

func compileCondition(r *fieldReader, tbl *lua.LTable, where string) types.Condition {
	c := types.Condition{
		Kind:      types.ConditionKind(r.str(tbl, "kind", where, "a string")),
		Flag:      r.str(tbl, "flag", where, "a string"),
		Value:     r.boolean(tbl, "value", where),
		Item:      r.str(tbl, "item", where, "a string"),
		Counter:   r.str(tbl, "counter", where, "a string"),
		NPC:       r.str(tbl, "npc", where, "an NPC id string"),
		Threshold: r.integer(tbl, "threshold", where),
	}
	if innerTbl := getTable(tbl, "inner"); innerTbl != nil {
		inner := compileCondition(r, innerTbl, where+" inner")
		c.Inner = &inner
	}
	return c
}

// build converts a validated pack into Defs, resolving next labels to line
// indexes.
func build(p *pack) *state.Defs {
	defs := state.NewDefs()
	if len(p.games) > 0 {
		defs.Game = p.games[0].def
	}

	for _, n := range p.npcs {
		defs.NPCDefs[n.def.ID] = n.def
	}

	for _, d := range p.dialogues {
		labels := lineLabels(d)
		dlg := types.DialogueDef{
			ID:              d.id,
			Requires:        d.requires,
			CompletionFlags: d.completes,
			Lines:           make([]types.LineDef, 0, len(d.lines)),
		}
		for _, ld := range d.lines {
			line := ld.def
			for _, cd := range ld.choices {
				choice := cd.def
				if cd.next != "" {
					idx := labels[cd.next]
					choice.Next = &idx
				}
				line.Choices = append(line.Choices, choice)
			}
			dlg.Lines = append(dlg.Lines, line)
		}
		defs.Dialogues[d.id] = dlg
	}

	return defs
}

// lineLabels maps each line label, plus EndLabel, to its index.
func lineLabels(d dialogueDraft) map[string]int {
	labels := map[string]int{EndLabel: len(d.lines)}
	for i, ld := range d.lines {
		if ld.def.ID != "" {
			if _, dup := labels[ld.def.ID]; !dup {
				labels[ld.def.ID] = i
			}
		}
	}
	return labels
}
