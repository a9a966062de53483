package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nathoo/parley/engine"
	"github.com/nathoo/parley/engine/events"
	"github.com/nathoo/parley/engine/parser"
	"github.com/nathoo/parley/engine/resolve"
	"github.com/nathoo/parley/engine/save"
	"github.com/nathoo/parley/engine/state"
	"github.com/nathoo/parley/types"
)

// Interpreter turns input lines into engine calls and renders the engine's
// events as text. It is shared by the line-based CLI and the TUI.
type Interpreter struct {
	Engine *engine.Engine
	Defs   *state.Defs
	Player *state.Player
	Saves  *save.Trigger // nil disables /save and /load
	Trace  bool

	out         []string
	unsubscribe func()
}

// NewInterpreter creates an interpreter and subscribes it to bus.
func NewInterpreter(eng *engine.Engine, defs *state.Defs, player *state.Player, bus *events.Bus, saves *save.Trigger) *Interpreter {
	in := &Interpreter{
		Engine: eng,
		Defs:   defs,
		Player: player,
		Saves:  saves,
	}
	in.unsubscribe = bus.Subscribe(in.handleEvent)
	return in
}

// Close unsubscribes from the event bus.
func (in *Interpreter) Close() {
	if in.unsubscribe != nil {
		in.unsubscribe()
		in.unsubscribe = nil
	}
}

// Intro returns the title and intro text of the content pack.
func (in *Interpreter) Intro() []string {
	var lines []string
	if in.Defs.Game.Title != "" {
		lines = append(lines, in.Defs.Game.Title, "")
	}
	if in.Defs.Game.Intro != "" {
		lines = append(lines, in.Defs.Game.Intro, "")
	}
	lines = append(lines, "Type who to see who is here, talk <name> to start a conversation, help for more.")
	return lines
}

// Exec runs one input line and returns the output it produced. quit is true
// when the player asked to leave.
func (in *Interpreter) Exec(input string) (lines []string, quit bool) {
	in.out = nil
	cmd := parser.Parse(input)

	switch {
	case cmd.Verb == "":
	case cmd.IsMeta():
		quit = in.handleMeta(cmd)
	default:
		quit = in.handleVerb(cmd)
	}

	lines, in.out = in.out, nil
	return lines, quit
}

func (in *Interpreter) handleVerb(cmd parser.Command) bool {
	switch cmd.Verb {
	case parser.VerbWho:
		in.cmdWho()
	case parser.VerbTalk:
		in.cmdTalk(cmd.Object)
	case parser.VerbNext:
		in.report(in.Engine.AdvanceLine())
	case parser.VerbChoose:
		if cmd.Number == 0 {
			in.printSystem("Choose which option?")
			return false
		}
		in.report(in.Engine.MakeChoice(cmd.Number - 1))
	case parser.VerbBye:
		if !in.Engine.End(false) {
			in.printLine("You aren't talking to anyone.")
		}
	case parser.VerbHelp:
		in.cmdHelp()
	case parser.VerbQuit:
		in.printSystem("Goodbye.")
		return true
	default:
		in.printLine("I don't understand that. Type help for a list of commands.")
	}
	return false
}

// handleMeta dispatches meta-commands. Returns true if the game should exit.
func (in *Interpreter) handleMeta(cmd parser.Command) bool {
	switch cmd.Verb {
	case "/quit", "/exit":
		in.printSystem("Goodbye.")
		return true

	case "/force":
		in.cmdForce(cmd.Args)

	case "/save":
		in.cmdSave()

	case "/load":
		in.cmdLoad()

	case "/help":
		in.cmdHelp()

	case "/state":
		in.cmdState()

	case "/trace":
		in.Trace = !in.Trace
		if in.Trace {
			in.printSystem("Trace output enabled.")
		} else {
			in.printSystem("Trace output disabled.")
		}

	case "/flag":
		in.cmdFlag(cmd.Args)

	case "/give":
		if len(cmd.Args) != 1 {
			in.printSystem("Usage: /give <item>")
			return false
		}
		in.Player.GiveItem(cmd.Args[0])
		in.printSystem(fmt.Sprintf("You now have %s.", cmd.Args[0]))

	case "/counter":
		in.cmdCounter(cmd.Args)

	default:
		in.printSystem(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd.Verb))
	}

	return false
}

func (in *Interpreter) cmdWho() {
	npcs := in.Defs.NPCs()
	if len(npcs) == 0 {
		in.printLine("Nobody is here.")
		return
	}
	in.printLine("People here:")
	for _, npc := range npcs {
		status := "nothing to say"
		if in.Engine.HasAvailableDialogue(npc.ID) {
			status = "wants to talk"
		}
		in.printLine(fmt.Sprintf("  %s [%s] - %s", DisplayName(npc), npc.ID, status))
	}
}

func (in *Interpreter) cmdTalk(name string) {
	if name == "" {
		in.printLine("Talk to whom?")
		return
	}
	id, err := resolve.NPC(in.Defs, name)
	if err != nil {
		in.printLine(capitalize(err.Error()) + ".")
		return
	}
	in.report(in.Engine.Start(id))
}

func (in *Interpreter) cmdForce(args []string) {
	if len(args) != 2 {
		in.printSystem("Usage: /force <npc> <dialogue>")
		return
	}
	id, err := resolve.NPC(in.Defs, args[0])
	if err != nil {
		in.printSystem(capitalize(err.Error()) + ".")
		return
	}
	in.report(in.Engine.ForceStart(id, args[1]))
}

func (in *Interpreter) cmdSave() {
	if in.Saves == nil {
		in.printSystem("Saving is disabled.")
		return
	}
	if err := in.Saves.SaveNow(context.Background()); err != nil {
		in.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}
	in.printSystem(fmt.Sprintf("Game saved to slot %s.", in.Saves.Slot()))
}

func (in *Interpreter) cmdLoad() {
	if in.Saves == nil {
		in.printSystem("Saving is disabled.")
		return
	}
	if in.Engine.Active() {
		in.printSystem("Finish the conversation before loading.")
		return
	}
	if _, err := in.Saves.LoadInto(context.Background(), in.Player); err != nil {
		if errors.Is(err, save.ErrNoSave) {
			in.printSystem(fmt.Sprintf("No save in slot %s.", in.Saves.Slot()))
			return
		}
		in.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}
	in.printSystem(fmt.Sprintf("Game loaded from slot %s.", in.Saves.Slot()))
}

func (in *Interpreter) cmdHelp() {
	help := []string{
		"Conversation:",
		"  who                 List who is here",
		"  talk <name>         Start talking to someone",
		"  next (n)            Continue to the next line",
		"  <number>            Pick a response",
		"  bye (leave)         Walk away from the conversation",
		"",
		"System:",
		"  /save               Save game",
		"  /load               Load game",
		"  /quit               Exit game",
		"  /help               Show this help",
		"  /state              Debug: dump current state",
		"  /trace              Toggle debug trace output",
		"  /force <npc> <id>   Debug: start a dialogue ignoring its conditions",
		"  /flag <name> [bool] Debug: set a flag",
		"  /give <item>        Debug: add an item",
		"  /counter <name> <n> Debug: set a counter",
	}
	for _, line := range help {
		in.printLine(line)
	}
}

func (in *Interpreter) cmdState() {
	if s, ok := in.Engine.Session(); ok {
		in.printSystem(fmt.Sprintf("Talking to: %s (dialogue %s, line %d/%d)",
			s.NPCID, s.DialogueID, s.LineIndex+1, in.Engine.LineCount()))
	} else {
		in.printSystem("Talking to: nobody")
	}
	p := in.Player
	if len(p.Flags) > 0 {
		in.printSystem(fmt.Sprintf("Flags: %s", formatMap(p.Flags)))
	}
	if len(p.Relationships) > 0 {
		in.printSystem(fmt.Sprintf("Relationships: %s", formatMap(p.Relationships)))
	}
	if len(p.Inventory) > 0 {
		in.printSystem(fmt.Sprintf("Inventory: %s", strings.Join(p.Inventory, ", ")))
	}
	if len(p.Counters) > 0 {
		in.printSystem(fmt.Sprintf("Counters: %s", formatMap(p.Counters)))
	}
}

func (in *Interpreter) cmdFlag(args []string) {
	if len(args) < 1 || len(args) > 2 {
		in.printSystem("Usage: /flag <name> [true|false]")
		return
	}
	value := true
	if len(args) == 2 {
		v, err := strconv.ParseBool(args[1])
		if err != nil {
			in.printSystem(fmt.Sprintf("Not a boolean: %s", args[1]))
			return
		}
		value = v
	}
	in.Player.SetFlag(args[0], value)
	in.printSystem(fmt.Sprintf("Flag %s = %t.", args[0], value))
}

func (in *Interpreter) cmdCounter(args []string) {
	if len(args) != 2 {
		in.printSystem("Usage: /counter <name> <n>")
		return
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		in.printSystem(fmt.Sprintf("Not a number: %s", args[1]))
		return
	}
	in.Player.SetCounter(args[0], n)
	in.printSystem(fmt.Sprintf("Counter %s = %d.", args[0], n))
}

// report renders an engine error as player-facing text.
func (in *Interpreter) report(err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, engine.ErrReentrant):
		in.printSystem(fmt.Sprintf("Ignored: %v", err))
	case errors.Is(err, engine.ErrNotActive):
		in.printLine("You aren't talking to anyone.")
	case errors.Is(err, engine.ErrAlreadyActive):
		in.printLine(fmt.Sprintf("You're already talking to %s. Say bye first.", in.currentName()))
	case errors.Is(err, engine.ErrNoDialogue):
		in.printLine("They have nothing to say to you right now.")
	case errors.Is(err, engine.ErrAwaitingChoice):
		line, _ := in.Engine.CurrentLine()
		in.printLine(fmt.Sprintf("Pick a response (1-%d).", len(line.Choices)))
	case errors.Is(err, engine.ErrNoChoices):
		in.printLine("There is nothing to choose here. Type next to continue.")
	case errors.Is(err, engine.ErrChoiceOutOfRange):
		line, _ := in.Engine.CurrentLine()
		in.printLine(fmt.Sprintf("There is no such option. Pick 1-%d.", len(line.Choices)))
	case errors.Is(err, engine.ErrUnknownDialogue):
		in.printSystem("No dialogue with that ID.")
	case errors.Is(err, engine.ErrEmptyDialogue):
		in.printSystem("That dialogue has no lines.")
	case errors.Is(err, engine.ErrDialogueGone):
		in.printLine("The conversation cannot continue.")
	default:
		in.printSystem(capitalize(err.Error()) + ".")
	}
}

func (in *Interpreter) handleEvent(evt types.Event) {
	if in.Trace {
		in.printLine(fmt.Sprintf("[trace] event %s npc=%s dialogue=%s", evt.Kind, evt.NPCID, evt.DialogueID))
	}

	name := in.npcName(evt.NPCID)
	switch evt.Kind {
	case types.EventDialogueStarted:
		in.printLine(fmt.Sprintf("--- %s ---", name))

	case types.EventLineAdvanced:
		speaker := evt.Line.Speaker
		if speaker == "" {
			speaker = name
		}
		in.printLine(fmt.Sprintf("%s: %q", speaker, evt.Line.Text))
		for i, choice := range evt.Line.Choices {
			in.printLine(fmt.Sprintf("  %d. %s", i+1, choice.Text))
		}

	case types.EventChoiceMade:
		in.printLine(fmt.Sprintf("> %s", evt.Choice.Text))
		in.renderEffects(evt.Effects)

	case types.EventDialogueEnded:
		in.renderEffects(evt.Effects)
		if evt.CompletedNaturally {
			in.printLine("--- end of conversation ---")
		} else {
			in.printLine(fmt.Sprintf("--- you leave %s ---", name))
		}
	}
}

func (in *Interpreter) renderEffects(effects []types.Effect) {
	for _, e := range effects {
		switch e.Kind {
		case types.EffectModifyRelationship:
			in.printSystem(fmt.Sprintf("%s: relationship %+d", in.npcName(e.NPC), e.Delta))
			if in.Trace {
				in.printLine(fmt.Sprintf("[trace] effect %s %s %+d", e.Kind, e.NPC, e.Delta))
			}
		case types.EffectSetFlag:
			if in.Trace {
				in.printLine(fmt.Sprintf("[trace] effect %s %s", e.Kind, e.Flag))
			}
		}
	}
}

func (in *Interpreter) currentName() string {
	npc, ok := in.Engine.CurrentNPC()
	if !ok {
		return "someone"
	}
	return DisplayName(npc)
}

func (in *Interpreter) npcName(id string) string {
	npc, ok := in.Defs.NPC(id)
	if !ok {
		return DisplayName(types.NPCDef{ID: id})
	}
	return DisplayName(npc)
}

// DisplayName returns the NPC's name, or its ID in title case when it has none.
func DisplayName(npc types.NPCDef) string {
	if npc.Name != "" {
		return npc.Name
	}
	return cases.Title(language.English).String(strings.ReplaceAll(npc.ID, "_", " "))
}

func (in *Interpreter) printLine(text string) {
	in.out = append(in.out, text)
}

func (in *Interpreter) printSystem(text string) {
	in.out = append(in.out, "["+text+"]")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// formatMap renders a map as "k=v, k=v" with sorted keys.
func formatMap[V any](m map[string]V) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, m[k])
	}
	return strings.Join(parts, ", ")
}
