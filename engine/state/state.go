// Package state holds the read-only content definitions and the mutable
// player state that conditions read and choices write.
package state

import (
	"maps"
	"slices"
	"sort"

	"github.com/nathoo/parley/types"
)

// Content supplies authored NPCs and dialogues by ID. Implementations must be
// safe to read for the engine's lifetime; the engine never writes to them.
type Content interface {
	NPC(id string) (types.NPCDef, bool)
	Dialogue(id string) (types.DialogueDef, bool)
	NPCs() []types.NPCDef
}

// View is the read-only side of player state used by condition evaluation.
type View interface {
	GetFlag(name string) bool
	GetRelationship(npcID string) int
	HasItem(itemID string) bool
	GetCounter(name string) int
}

// Store is the writable player state the engine applies choice effects to.
type Store interface {
	View
	SetFlag(name string, value bool)
	ModifyRelationship(npcID string, delta int)
}

// Defs holds the immutable content loaded from Lua or YAML.
type Defs struct {
	Game      types.GameDef
	NPCDefs   map[string]types.NPCDef
	Dialogues map[string]types.DialogueDef
}

// NewDefs returns empty definitions with initialized maps.
func NewDefs() *Defs {
	return &Defs{
		NPCDefs:   map[string]types.NPCDef{},
		Dialogues: map[string]types.DialogueDef{},
	}
}

// NPC returns the NPC with the given ID.
func (d *Defs) NPC(id string) (types.NPCDef, bool) {
	npc, ok := d.NPCDefs[id]
	return npc, ok
}

// Dialogue returns the dialogue with the given ID.
func (d *Defs) Dialogue(id string) (types.DialogueDef, bool) {
	dlg, ok := d.Dialogues[id]
	return dlg, ok
}

// NPCs returns every NPC sorted by ID.
func (d *Defs) NPCs() []types.NPCDef {
	out := make([]types.NPCDef, 0, len(d.NPCDefs))
	for _, npc := range d.NPCDefs {
		out = append(out, npc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Player is the in-memory player state. Unset flags read false, unset
// relationships and counters read 0.
type Player struct {
	Flags         map[string]bool
	Relationships map[string]int
	Inventory     []string
	Counters      map[string]int
}

// NewPlayer creates a fresh player state.
func NewPlayer() *Player {
	return &Player{
		Flags:         map[string]bool{},
		Relationships: map[string]int{},
		Inventory:     []string{},
		Counters:      map[string]int{},
	}
}

func (p *Player) GetFlag(name string) bool { return p.Flags[name] }

func (p *Player) SetFlag(name string, value bool) { p.Flags[name] = value }

func (p *Player) GetRelationship(npcID string) int { return p.Relationships[npcID] }

func (p *Player) ModifyRelationship(npcID string, delta int) {
	p.Relationships[npcID] += delta
}

func (p *Player) GetCounter(name string) int { return p.Counters[name] }

func (p *Player) SetCounter(name string, value int) { p.Counters[name] = value }

// HasItem returns true if the player carries the given item.
func (p *Player) HasItem(itemID string) bool {
	return slices.Contains(p.Inventory, itemID)
}

// GiveItem adds an item to the inventory. Duplicates are ignored.
func (p *Player) GiveItem(itemID string) {
	if p.HasItem(itemID) {
		return
	}
	p.Inventory = append(p.Inventory, itemID)
}

// RemoveItem drops an item from the inventory if present.
func (p *Player) RemoveItem(itemID string) {
	if i := slices.Index(p.Inventory, itemID); i >= 0 {
		p.Inventory = slices.Delete(p.Inventory, i, i+1)
	}
}

// Snapshot returns a deep copy of the player state.
func (p *Player) Snapshot() types.PlayerSnapshot {
	return types.PlayerSnapshot{
		Flags:         maps.Clone(p.Flags),
		Relationships: maps.Clone(p.Relationships),
		Inventory:     slices.Clone(p.Inventory),
		Counters:      maps.Clone(p.Counters),
	}
}

// Restore replaces the player state with a copy of snap. Nil maps in the
// snapshot become empty maps.
func (p *Player) Restore(snap types.PlayerSnapshot) {
	p.Flags = orEmpty(maps.Clone(snap.Flags))
	p.Relationships = orEmpty(maps.Clone(snap.Relationships))
	p.Counters = orEmpty(maps.Clone(snap.Counters))
	p.Inventory = slices.Clone(snap.Inventory)
	if p.Inventory == nil {
		p.Inventory = []string{}
	}
}

func orEmpty[V any](m map[string]V) map[string]V {
	if m == nil {
		return map[string]V{}
	}
	return m
}
