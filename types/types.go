// Package types defines the shared data structures for the parley dialogue engine.
// This package contains only type definitions: no logic, no methods.
package types

// GameDef holds content pack metadata from Lua or YAML.
type GameDef struct {
	Title   string
	Author  string
	Version string
	Intro   string
}

// ConditionKind selects the evaluator for a Condition.
type ConditionKind string

// Known condition kinds. Anything else evaluates to false.
const (
	CondAlways              ConditionKind = "always"
	CondFlagSet             ConditionKind = "flag_set"
	CondFlagNot             ConditionKind = "flag_not"
	CondFlagIs              ConditionKind = "flag_is"
	CondHasItem             ConditionKind = "has_item"
	CondCounterGt           ConditionKind = "counter_gt"
	CondCounterLt           ConditionKind = "counter_lt"
	CondRelationshipAtLeast ConditionKind = "relationship_at_least"
	CondRelationshipBelow   ConditionKind = "relationship_below"
	CondNot                 ConditionKind = "not"
)

// Condition is a gating predicate. Kind picks which payload fields are read.
type Condition struct {
	Kind      ConditionKind
	Flag      string     // flag_set, flag_not, flag_is
	Value     bool       // flag_is
	Item      string     // has_item
	Counter   string     // counter_gt, counter_lt
	NPC       string     // relationship_*
	Threshold int        // counter_*, relationship_*
	Inner     *Condition // not
}

// ChoiceDef is a player-selectable branch on a line.
type ChoiceDef struct {
	Text              string
	Flag              string // set true when chosen; empty means none
	RelationshipDelta int
	RelationshipNPC   string // empty means the NPC being talked to
	Next              *int   // explicit line index; nil continues sequentially
}

// LineDef is one beat of dialogue.
type LineDef struct {
	ID      string // optional authoring label, target of ChoiceDef.Next
	Speaker string // optional; defaults to the NPC's name when rendered
	Text    string
	Choices []ChoiceDef
}

// DialogueDef is a complete conversation: a flat line sequence with optional jumps.
type DialogueDef struct {
	ID              string
	Requires        []Condition
	Lines           []LineDef
	CompletionFlags []string // set when the dialogue runs past its last line
}

// NPCDef is the static identity of a conversational partner.
type NPCDef struct {
	ID        string
	Name      string
	Dialogues []string // candidate dialogue IDs in priority order
}

// EventKind names a conversation lifecycle notification.
type EventKind string

const (
	EventDialogueStarted EventKind = "dialogue_started"
	EventLineAdvanced    EventKind = "line_advanced"
	EventChoiceMade      EventKind = "choice_made"
	EventDialogueEnded   EventKind = "dialogue_ended"
)

// Event is published by the engine after an operation's state changes are final.
type Event struct {
	Kind       EventKind
	SessionID  string
	NPCID      string
	DialogueID string

	LineIndex int     // line_advanced
	Line      LineDef // line_advanced

	ChoiceIndex int       // choice_made
	Choice      ChoiceDef // choice_made
	Effects     []Effect  // choice_made, dialogue_ended

	CompletedNaturally bool // dialogue_ended
}

// EffectKind names a single player-state write.
type EffectKind string

const (
	EffectSetFlag            EffectKind = "set_flag"
	EffectModifyRelationship EffectKind = "modify_relationship"
)

// Effect records one write the engine made to player state.
type Effect struct {
	Kind  EffectKind
	Flag  string
	NPC   string
	Delta int
}

// PlayerSnapshot is a detached copy of player state, used for saves.
type PlayerSnapshot struct {
	Flags         map[string]bool `json:"flags"`
	Relationships map[string]int  `json:"relationships"`
	Inventory     []string        `json:"inventory"`
	Counters      map[string]int  `json:"counters"`
}
