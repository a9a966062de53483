package loader

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/parley/types"
)

// registerAPI registers all Lua constructors and helpers as globals.
func registerAPI(L *lua.LState, coll *collector) {
	registerConstructors(L, coll)
	registerConditionHelpers(L)
}

func registerConstructors(L *lua.LState, coll *collector) {
	// Game { title = "...", ... }
	L.SetGlobal("Game", L.NewFunction(func(L *lua.LState) int {
		tbl := L.CheckTable(1)
		coll.games = append(coll.games, rawTable{source: coll.file, table: tbl})
		return 0
	}))

	// NPC "id" { name = "...", dialogues = { ... } }
	L.SetGlobal("NPC", curried(L, coll, &coll.npcs))

	// Dialogue "id" { requires = {...}, completes = {...}, lines = {...} }
	L.SetGlobal("Dialogue", curried(L, coll, &coll.dialogues))

	// Line { ... } and Choice { ... } return their table unchanged.
	passThrough := func(L *lua.LState) int {
		L.Push(L.CheckTable(1))
		return 1
	}
	L.SetGlobal("Line", L.NewFunction(passThrough))
	L.SetGlobal("Choice", L.NewFunction(passThrough))
}

// curried returns a constructor called as Kind "id" { ... }: the first call
// takes the ID and returns a function that records the table into dest.
func curried(L *lua.LState, coll *collector, dest *[]rawTable) *lua.LFunction {
	return L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			*dest = append(*dest, rawTable{id: id, source: coll.file, table: tbl})
			return 0
		}))
		return 1
	})
}

// helperArg is one positional argument of a condition helper and the table
// key it is stored under.
type helperArg struct {
	key string
	typ lua.LValueType
}

// conditionHelpers maps each Lua helper name to the condition kind it builds
// and its positional arguments. HasItem("key") builds
// { kind = "has_item", item = "key" }.
var conditionHelpers = map[string]struct {
	kind types.ConditionKind
	args []helperArg
}{
	"Always":              {types.CondAlways, nil},
	"HasItem":             {types.CondHasItem, []helperArg{{"item", lua.LTString}}},
	"FlagSet":             {types.CondFlagSet, []helperArg{{"flag", lua.LTString}}},
	"FlagNot":             {types.CondFlagNot, []helperArg{{"flag", lua.LTString}}},
	"FlagIs":              {types.CondFlagIs, []helperArg{{"flag", lua.LTString}, {"value", lua.LTBool}}},
	"CounterGt":           {types.CondCounterGt, []helperArg{{"counter", lua.LTString}, {"threshold", lua.LTNumber}}},
	"CounterLt":           {types.CondCounterLt, []helperArg{{"counter", lua.LTString}, {"threshold", lua.LTNumber}}},
	"RelationshipAtLeast": {types.CondRelationshipAtLeast, []helperArg{{"npc", lua.LTString}, {"threshold", lua.LTNumber}}},
	"RelationshipBelow":   {types.CondRelationshipBelow, []helperArg{{"npc", lua.LTString}, {"threshold", lua.LTNumber}}},
	"Not":                 {types.CondNot, []helperArg{{"inner", lua.LTTable}}},
}

func registerConditionHelpers(L *lua.LState) {
	for name, h := range conditionHelpers {
		kind, args := h.kind, h.args
		L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int {
			tbl := L.NewTable()
			tbl.RawSetString("kind", lua.LString(kind))
			for i, a := range args {
				tbl.RawSetString(a.key, checkArg(L, i+1, a.typ))
			}
			L.Push(tbl)
			return 1
		}))
	}
}

// checkArg reads argument n as typ, raising a Lua error on a mismatch.
func checkArg(L *lua.LState, n int, typ lua.LValueType) lua.LValue {
	switch typ {
	case lua.LTString:
		return lua.LString(L.CheckString(n))
	case lua.LTNumber:
		return L.CheckNumber(n)
	case lua.LTBool:
		return lua.LBool(L.CheckBool(n))
	default:
		return L.CheckTable(n)
	}
}
