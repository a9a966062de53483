package loader

import (
	"testing"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/parley/types"
)

// compileString runs a Lua snippet through the DSL and returns the pack.
func compileString(t *testing.T, src string) *pack {
	t.Helper()
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	openSafeLibs(L)
	sandbox(L)

	coll := &collector{file: "inline.lua"}
	registerAPI(L, coll)
	if err := L.DoString(src); err != nil {
		t.Fatalf("DoString: %v", err)
	}

	p := &pack{}
	compileLua(coll, p)
	return p
}

func TestCompile_ConditionHelpers(t *testing.T) {
	p := compileString(t, `
Dialogue "d" {
  requires = {
    Always(),
    FlagSet("a"),
    FlagIs("b", false),
    CounterGt("c", 2),
    CounterLt("c", 9),
    RelationshipBelow("npc", -3),
  },
  lines = { Line { text = "x" } },
}`)

	if len(p.dialogues) != 1 {
		t.Fatalf("expected 1 dialogue, got %d", len(p.dialogues))
	}
	want := []types.Condition{
		{Kind: types.CondAlways},
		{Kind: types.CondFlagSet, Flag: "a"},
		{Kind: types.CondFlagIs, Flag: "b", Value: false},
		{Kind: types.CondCounterGt, Counter: "c", Threshold: 2},
		{Kind: types.CondCounterLt, Counter: "c", Threshold: 9},
		{Kind: types.CondRelationshipBelow, NPC: "npc", Threshold: -3},
	}
	got := p.dialogues[0].requires
	if len(got) != len(want) {
		t.Fatalf("got %d conditions, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("condition %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCompile_RecordsSourceFile(t *testing.T) {
	p := compileString(t, `
Game { title = "T" }
NPC "n" { dialogues = { "d" } }
Dialogue "d" { lines = { Line { text = "x" } } }`)

	if p.games[0].source != "inline.lua" || p.npcs[0].source != "inline.lua" || p.dialogues[0].source != "inline.lua" {
		t.Errorf("sources not recorded: %+v %+v %+v", p.games, p.npcs, p.dialogues)
	}
}

func TestCompile_LuaLogicAllowed(t *testing.T) {
	p := compileString(t, `
local lines = {}
for i = 1, 3 do
  table.insert(lines, Line { text = string.format("Line %d", i) })
end
Dialogue "counted" { lines = lines }`)

	lines := p.dialogues[0].lines
	if len(lines) != 3 || lines[2].def.Text != "Line 3" {
		t.Errorf("lines = %+v", lines)
	}
}

func TestBuild_ResolvesLabels(t *testing.T) {
	p := &pack{
		games: []gameDraft{{def: types.GameDef{Title: "T"}}},
		dialogues: []dialogueDraft{{
			id: "d",
			lines: []lineDraft{
				{def: types.LineDef{ID: "top", Text: "a"}, choices: []choiceDraft{
					{def: types.ChoiceDef{Text: "again"}, next: "top"},
					{def: types.ChoiceDef{Text: "skip"}, next: "last"},
					{def: types.ChoiceDef{Text: "leave"}, next: EndLabel},
					{def: types.ChoiceDef{Text: "on"}},
				}},
				{def: types.LineDef{Text: "b"}},
				{def: types.LineDef{ID: "last", Text: "c"}},
			},
		}},
	}

	defs := build(p)
	choices := defs.Dialogues["d"].Lines[0].Choices
	wantNext := []int{0, 2, 3}
	for i, want := range wantNext {
		if choices[i].Next == nil || *choices[i].Next != want {
			t.Errorf("choice %d next = %v, want %d", i, choices[i].Next, want)
		}
	}
	if choices[3].Next != nil {
		t.Errorf("choice without next should be sequential, got %d", *choices[3].Next)
	}
	if defs.Game.Title != "T" {
		t.Errorf("Game = %+v", defs.Game)
	}
}
