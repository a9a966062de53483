package loader

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/parley/engine/state"
)

// rawTable is a Lua definition captured during file execution.
type rawTable struct {
	id     string
	source string
	table  *lua.LTable
}

// collector accumulates Lua definitions during file execution.
type collector struct {
	file      string // file currently executing
	games     []rawTable
	npcs      []rawTable
	dialogues []rawTable
}

// Load reads every .lua and .yaml/.yml file in dir, compiles them into
// content definitions, validates references, and returns the immutable
// Defs. Warnings are logged. The Lua VM is discarded after loading.
func Load(dir string) (*state.Defs, error) {
	defs, warnings, err := LoadAll(dir)
	for _, w := range warnings {
		slog.Warn("content warning", "dir", dir, "warning", w)
	}
	return defs, err
}

// LoadAll is Load, returning warnings instead of logging them. On a
// validation failure the error is a *ValidationError.
func LoadAll(dir string) (*state.Defs, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading content directory %s: %w", dir, err)
	}

	var luaFiles, yamlFiles []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch name := e.Name(); {
		case strings.HasSuffix(name, ".lua"):
			luaFiles = append(luaFiles, name)
		case isYAML(name):
			yamlFiles = append(yamlFiles, name)
		}
	}
	if len(luaFiles) == 0 && len(yamlFiles) == 0 {
		return nil, nil, fmt.Errorf("no .lua or .yaml files found in %s", dir)
	}

	p := &pack{}

	if len(luaFiles) > 0 {
		if err := loadLua(dir, sortedLuaFiles(luaFiles), p); err != nil {
			return nil, nil, err
		}
	}

	sort.Strings(yamlFiles)
	for _, f := range yamlFiles {
		if err := loadYAML(filepath.Join(dir, f), f, p); err != nil {
			return nil, nil, err
		}
	}

	warnings, err := validate(p)
	if err != nil {
		return nil, warnings, err
	}
	return build(p), warnings, nil
}

// loadLua executes the Lua files in a sandboxed VM and compiles what they
// define into p.
func loadLua(dir string, files []string, p *pack) error {
	// Create sandboxed VM.
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	// Open safe libs only.
	openSafeLibs(L)

	// Sandbox: remove dangerous globals.
	sandbox(L)

	// Register API.
	coll := &collector{}
	registerAPI(L, coll)

	// Execute each file.
	for _, f := range files {
		coll.file = f
		if err := L.DoFile(filepath.Join(dir, f)); err != nil {
			return fmt.Errorf("executing %s: %w", f, err)
		}
	}

	compileLua(coll, p)
	return nil
}

// openSafeLibs opens only the safe subset of Lua standard libraries.
func openSafeLibs(L *lua.LState) {
	// Base library (print, type, tostring, tonumber, pairs, ipairs, etc.)
	lua.OpenBase(L)
	// Table library (table.insert, table.sort, etc.)
	lua.OpenTable(L)
	// String library (string.format, string.sub, etc.)
	lua.OpenString(L)
	// Math library (math.floor, math.max, etc.)
	lua.OpenMath(L)
}

// sandbox removes dangerous globals and functions.
func sandbox(L *lua.LState) {
	dangerous := []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage",
	}
	for _, name := range dangerous {
		L.SetGlobal(name, lua.LNil)
	}

	// Content must load the same way every time.
	if mathTbl := L.GetGlobal("math"); mathTbl != lua.LNil {
		if tbl, ok := mathTbl.(*lua.LTable); ok {
			tbl.RawSetString("randomseed", lua.LNil)
			tbl.RawSetString("random", lua.LNil)
		}
	}
}

// sortedLuaFiles returns .lua files with game.lua first and the rest sorted
// alphabetically.
func sortedLuaFiles(files []string) []string {
	var gameFile string
	var others []string
	for _, f := range files {
		if f == "game.lua" {
			gameFile = f
		} else {
			others = append(others, f)
		}
	}
	sort.Strings(others)
	if gameFile != "" {
		return append([]string{gameFile}, others...)
	}
	return others
}

// isYAML reports whether name has a YAML extension.
func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
