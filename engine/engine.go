// Package engine provides the conversation state machine: it starts a
// dialogue with an NPC, walks its lines, resolves choices, and ends it.
//
// The engine is single-threaded and synchronous. Events produced by an
// operation are held until the operation has finished changing state and
// are then published in order. While they are being published (and while
// the save request on End runs) the engine refuses nested operations:
// Start and ForceStart fail with ErrAlreadyActive, AdvanceLine and
// MakeChoice with ErrNotActive, both wrapped in ErrReentrant, and End is a
// no-op.
package engine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nathoo/parley/engine/dialogue"
	"github.com/nathoo/parley/engine/effects"
	"github.com/nathoo/parley/engine/events"
	"github.com/nathoo/parley/engine/state"
	"github.com/nathoo/parley/observe"
	"github.com/nathoo/parley/types"
)

// Saver receives a save request whenever a conversation ends. The engine
// does not wait for or observe the outcome.
type Saver interface {
	RequestSave()
}

// Session is the state of the active conversation. It holds IDs only;
// content is looked up on every operation.
type Session struct {
	ID         string
	NPCID      string
	DialogueID string
	LineIndex  int
}

// Engine owns the single active-conversation slot.
type Engine struct {
	content state.Content
	player  state.Store
	pub     events.Publisher
	saver   Saver
	log     *slog.Logger
	metrics *observe.Metrics
	newID   func() string

	session     *Session
	pending     []types.Event
	saveNeeded  bool
	dispatching bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher sets where lifecycle events go. Without one they are dropped.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.pub = p }
}

// WithSaver sets the save trigger called at the end of every conversation.
func WithSaver(s Saver) Option {
	return func(e *Engine) { e.saver = s }
}

// WithLogger sets the logger for diagnostics. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics enables metric recording.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithSessionIDs replaces the session ID generator. Default: random UUIDs.
func WithSessionIDs(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// New creates an idle engine over the given content and player state.
func New(content state.Content, player state.Store, opts ...Option) *Engine {
	e := &Engine{
		content: content,
		player:  player,
		log:     slog.Default(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins a conversation with the NPC, picking the first of its
// dialogues whose conditions hold.
func (e *Engine) Start(npcID string) error {
	const op = "start"
	if e.dispatching {
		return e.reject(op, reentrant(ErrAlreadyActive), "npc", npcID)
	}
	if npcID == "" {
		return e.reject(op, ErrNoNPC)
	}
	if e.session != nil {
		return e.reject(op, ErrAlreadyActive, "npc", npcID, "active_npc", e.session.NPCID)
	}
	npc, ok := e.content.NPC(npcID)
	if !ok {
		return e.reject(op, ErrUnknownNPC, "npc", npcID)
	}
	dlg, ok := dialogue.Select(npc, e.content, e.player)
	if !ok {
		return e.reject(op, ErrNoDialogue, "npc", npcID)
	}
	return e.begin(op, npc, dlg, false)
}

// ForceStart begins the given dialogue with the NPC without checking its
// conditions. It is meant for scripted story beats that must happen
// regardless of state; every other precondition of Start still applies.
func (e *Engine) ForceStart(npcID, dialogueID string) error {
	const op = "force_start"
	if e.dispatching {
		return e.reject(op, reentrant(ErrAlreadyActive), "npc", npcID, "dialogue", dialogueID)
	}
	if npcID == "" {
		return e.reject(op, ErrNoNPC)
	}
	if dialogueID == "" {
		return e.reject(op, ErrNoDialogueID, "npc", npcID)
	}
	if e.session != nil {
		return e.reject(op, ErrAlreadyActive, "npc", npcID, "active_npc", e.session.NPCID)
	}
	npc, ok := e.content.NPC(npcID)
	if !ok {
		return e.reject(op, ErrUnknownNPC, "npc", npcID)
	}
	dlg, ok := e.content.Dialogue(dialogueID)
	if !ok {
		return e.reject(op, ErrUnknownDialogue, "npc", npcID, "dialogue", dialogueID)
	}
	e.log.Debug("starting dialogue without checking conditions", "npc", npcID, "dialogue", dialogueID)
	return e.begin(op, npc, dlg, true)
}

func (e *Engine) begin(op string, npc types.NPCDef, dlg types.DialogueDef, forced bool) error {
	if len(dlg.Lines) == 0 {
		return e.reject(op, ErrEmptyDialogue, "npc", npc.ID, "dialogue", dlg.ID)
	}

	e.session = &Session{
		ID:         e.newID(),
		NPCID:      npc.ID,
		DialogueID: dlg.ID,
		LineIndex:  0,
	}
	e.queue(types.Event{Kind: types.EventDialogueStarted})
	e.queue(types.Event{Kind: types.EventLineAdvanced, LineIndex: 0, Line: dlg.Lines[0]})

	e.metrics.RecordStart(context.Background(), npc.ID, dlg.ID, forced)
	e.metrics.RecordLine(context.Background(), npc.ID)
	e.log.Debug("conversation started",
		"session", e.session.ID, "npc", npc.ID, "dialogue", dlg.ID, "forced", forced)

	e.commit()
	return nil
}

// AdvanceLine moves past a line that has no choices. Moving past the last
// line ends the conversation as completed.
func (e *Engine) AdvanceLine() error {
	const op = "advance"
	if e.dispatching {
		return e.reject(op, reentrant(ErrNotActive))
	}
	if e.session == nil {
		return e.reject(op, ErrNotActive)
	}
	dlg, err := e.activeDialogue(op)
	if err != nil {
		return err
	}

	line := dlg.Lines[e.session.LineIndex]
	if len(line.Choices) > 0 {
		return e.reject(op, ErrAwaitingChoice,
			"npc", e.session.NPCID, "dialogue", dlg.ID, "line", e.session.LineIndex)
	}

	e.moveTo(dlg, e.session.LineIndex+1)
	e.commit()
	return nil
}

// MakeChoice resolves a choice on the current line: it sets the choice's
// flag, applies its relationship change, and moves to its target line (or
// the next one). Moving past the last line ends the conversation as
// completed.
func (e *Engine) MakeChoice(index int) error {
	const op = "choose"
	if e.dispatching {
		return e.reject(op, reentrant(ErrNotActive), "choice", index)
	}
	if e.session == nil {
		return e.reject(op, ErrNotActive, "choice", index)
	}
	dlg, err := e.activeDialogue(op)
	if err != nil {
		return err
	}

	s := e.session
	line := dlg.Lines[s.LineIndex]
	if len(line.Choices) == 0 {
		return e.reject(op, ErrNoChoices,
			"npc", s.NPCID, "dialogue", dlg.ID, "line", s.LineIndex, "choice", index)
	}
	if index < 0 || index >= len(line.Choices) {
		return e.reject(op, ErrChoiceOutOfRange,
			"npc", s.NPCID, "dialogue", dlg.ID, "line", s.LineIndex,
			"choice", index, "choices", len(line.Choices))
	}

	choice := line.Choices[index]
	applied := effects.ApplyChoice(e.player, choice, s.NPCID)
	e.queue(types.Event{
		Kind:        types.EventChoiceMade,
		LineIndex:   s.LineIndex,
		ChoiceIndex: index,
		Choice:      choice,
		Effects:     applied,
	})
	e.metrics.RecordChoice(context.Background(), s.NPCID, dlg.ID)

	dest := s.LineIndex + 1
	if choice.Next != nil {
		if *choice.Next >= 0 {
			dest = *choice.Next
		} else {
			e.log.Warn("choice has a negative next line; continuing sequentially",
				"npc", s.NPCID, "dialogue", dlg.ID, "line", s.LineIndex, "choice", index, "next", *choice.Next)
		}
	}

	e.moveTo(dlg, dest)
	e.commit()
	return nil
}

// End finishes the active conversation. Completion flags are applied only
// when completedNaturally is true. It returns false, and does nothing, if
// no conversation is active.
func (e *Engine) End(completedNaturally bool) bool {
	if e.dispatching {
		e.log.Warn("end called from an event handler; ignored")
		e.metrics.RecordRejection(context.Background(), "end", "reentrant")
		return false
	}
	if e.session == nil {
		e.log.Info("end called with no active conversation")
		return false
	}

	dlg, ok := e.content.Dialogue(e.session.DialogueID)
	e.finish(dlg, completedNaturally && ok)
	e.commit()
	return true
}

// moveTo makes idx the current line, or ends the conversation as completed
// if idx is past the last line.
func (e *Engine) moveTo(dlg types.DialogueDef, idx int) {
	if idx >= len(dlg.Lines) {
		e.finish(dlg, true)
		return
	}
	e.session.LineIndex = idx
	e.queue(types.Event{Kind: types.EventLineAdvanced, LineIndex: idx, Line: dlg.Lines[idx]})
	e.metrics.RecordLine(context.Background(), e.session.NPCID)
}

// finish applies completion effects, queues DialogueEnded and clears the
// session. The save request is issued by commit.
func (e *Engine) finish(dlg types.DialogueDef, completed bool) {
	s := e.session

	var applied []types.Effect
	if completed {
		applied = effects.ApplyCompletion(e.player, dlg)
	}

	e.queue(types.Event{
		Kind:               types.EventDialogueEnded,
		Effects:            applied,
		CompletedNaturally: completed,
	})
	e.session = nil
	e.saveNeeded = true

	e.metrics.RecordEnd(context.Background(), s.NPCID, s.DialogueID, completed)
	e.log.Debug("conversation ended",
		"session", s.ID, "npc", s.NPCID, "dialogue", s.DialogueID, "completed", completed)
}

// queue stamps evt with the current session and holds it for commit.
func (e *Engine) queue(evt types.Event) {
	s := e.session
	evt.SessionID = s.ID
	evt.NPCID = s.NPCID
	evt.DialogueID = s.DialogueID
	e.pending = append(e.pending, evt)
}

// commit publishes queued events and issues a pending save request with
// the reentrancy guard held.
func (e *Engine) commit() {
	e.dispatching = true
	defer func() { e.dispatching = false }()

	pending := e.pending
	e.pending = nil
	if e.pub != nil {
		for _, evt := range pending {
			e.pub.Publish(evt)
		}
	}

	if e.saveNeeded {
		e.saveNeeded = false
		if e.saver != nil {
			e.saver.RequestSave()
		}
	}
}

// activeDialogue resolves the session's dialogue. If the content no longer
// has it, the conversation is cancelled.
func (e *Engine) activeDialogue(op string) (types.DialogueDef, error) {
	s := e.session
	dlg, ok := e.content.Dialogue(s.DialogueID)
	if ok && s.LineIndex < len(dlg.Lines) {
		return dlg, nil
	}
	err := e.reject(op, ErrDialogueGone, "npc", s.NPCID, "dialogue", s.DialogueID)
	e.finish(types.DialogueDef{ID: s.DialogueID}, false)
	e.commit()
	return types.DialogueDef{}, err
}

// reject logs and counts a refused operation and returns err unchanged.
func (e *Engine) reject(op string, err error, attrs ...any) error {
	e.log.Warn("dialogue operation rejected", append([]any{"op", op, "err", err}, attrs...)...)
	e.metrics.RecordRejection(context.Background(), op, reasonCode(err))
	return err
}

// Active reports whether a conversation is in progress.
func (e *Engine) Active() bool {
	return e.session != nil
}

// Session returns a copy of the active session.
func (e *Engine) Session() (Session, bool) {
	if e.session == nil {
		return Session{}, false
	}
	return *e.session, true
}

// CurrentLine returns the line the active conversation is on.
func (e *Engine) CurrentLine() (types.LineDef, bool) {
	if e.session == nil {
		return types.LineDef{}, false
	}
	dlg, ok := e.content.Dialogue(e.session.DialogueID)
	if !ok || e.session.LineIndex >= len(dlg.Lines) {
		return types.LineDef{}, false
	}
	return dlg.Lines[e.session.LineIndex], true
}

// CurrentNPC returns the NPC of the active conversation.
func (e *Engine) CurrentNPC() (types.NPCDef, bool) {
	if e.session == nil {
		return types.NPCDef{}, false
	}
	return e.content.NPC(e.session.NPCID)
}

// LineCount returns the number of lines in the active dialogue, or 0.
func (e *Engine) LineCount() int {
	if e.session == nil {
		return 0
	}
	dlg, _ := e.content.Dialogue(e.session.DialogueID)
	return len(dlg.Lines)
}

// HasAvailableDialogue reports whether Start(npcID) would find a dialogue,
// ignoring whether a conversation is already active. Unknown NPCs have none.
func (e *Engine) HasAvailableDialogue(npcID string) bool {
	npc, ok := e.content.NPC(npcID)
	if !ok {
		return false
	}
	return dialogue.HasAvailable(npc, e.content, e.player)
}

// AvailableDialogues lists the NPC's eligible dialogue IDs in authored order.
func (e *Engine) AvailableDialogues(npcID string) []string {
	npc, ok := e.content.NPC(npcID)
	if !ok {
		return nil
	}
	return dialogue.Available(npc, e.content, e.player)
}
