package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/nathoo/parley/engine/events"
	"github.com/nathoo/parley/engine/state"
	"github.com/nathoo/parley/observe"
	"github.com/nathoo/parley/types"
)

func intPtr(i int) *int { return &i }

// testDefs builds the innkeeper from the tavern sample plus a smith with a
// single ungated dialogue and a hermit who has nothing to say.
func testDefs() *state.Defs {
	defs := state.NewDefs()
	defs.NPCDefs["innkeeper"] = types.NPCDef{
		ID:        "innkeeper",
		Name:      "Innkeeper",
		Dialogues: []string{"greet", "regular"},
	}
	defs.NPCDefs["smith"] = types.NPCDef{
		ID:        "smith",
		Name:      "Smith",
		Dialogues: []string{"smith_hello"},
	}
	defs.NPCDefs["hermit"] = types.NPCDef{
		ID:        "hermit",
		Name:      "Hermit",
		Dialogues: []string{"hermit_secret"},
	}

	defs.Dialogues["greet"] = types.DialogueDef{
		ID:       "greet",
		Requires: []types.Condition{{Kind: types.CondFlagNot, Flag: "greetDone"}},
		Lines: []types.LineDef{
			{ID: "welcome", Text: "Welcome, traveler!", Choices: []types.ChoiceDef{
				{Text: "Nice to meet you.", Flag: "metInnkeeper"},
				{Text: "Got any work?", RelationshipDelta: 5, Next: intPtr(2)},
			}},
			{ID: "stay", Text: "Enjoy your stay."},
			{ID: "work", Text: "Maybe later, then."},
		},
		CompletionFlags: []string{"greetDone"},
	}
	defs.Dialogues["regular"] = types.DialogueDef{
		ID:    "regular",
		Lines: []types.LineDef{{Text: "Back again?"}},
	}
	defs.Dialogues["smith_hello"] = types.DialogueDef{
		ID:    "smith_hello",
		Lines: []types.LineDef{{Text: "Need something forged?"}},
	}
	defs.Dialogues["hermit_secret"] = types.DialogueDef{
		ID:       "hermit_secret",
		Requires: []types.Condition{{Kind: types.CondHasItem, Item: "amulet"}},
		Lines:    []types.LineDef{{Text: "You found it."}},
	}
	defs.Dialogues["empty"] = types.DialogueDef{ID: "empty"}
	return defs
}

type recorder struct {
	events []types.Event
}

func (r *recorder) Publish(evt types.Event) { r.events = append(r.events, evt) }

func (r *recorder) kinds() []types.EventKind {
	out := make([]types.EventKind, len(r.events))
	for i, evt := range r.events {
		out[i] = evt.Kind
	}
	return out
}

type saverFunc func()

func (f saverFunc) RequestSave() { f() }

type harness struct {
	eng    *Engine
	defs   *state.Defs
	player *state.Player
	rec    *recorder
	saves  int
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{defs: testDefs(), player: state.NewPlayer(), rec: &recorder{}}
	base := []Option{
		WithPublisher(h.rec),
		WithSaver(saverFunc(func() { h.saves++ })),
		WithLogger(observe.Discard()),
	}
	h.eng = New(h.defs, h.player, append(base, opts...)...)
	return h
}

func TestStart_SelectsFirstEligible(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.eng.Start("innkeeper"))

	s, ok := h.eng.Session()
	require.True(t, ok)
	assert.Equal(t, "innkeeper", s.NPCID)
	assert.Equal(t, "greet", s.DialogueID)
	assert.Equal(t, 0, s.LineIndex)
	assert.NotEmpty(t, s.ID)

	assert.Equal(t, []types.EventKind{types.EventDialogueStarted, types.EventLineAdvanced}, h.rec.kinds())
	assert.Equal(t, "Welcome, traveler!", h.rec.events[1].Line.Text)
	assert.Equal(t, s.ID, h.rec.events[0].SessionID)
}

func TestStart_FallsBackWhenGated(t *testing.T) {
	h := newHarness(t)
	h.player.SetFlag("greetDone", true)

	require.NoError(t, h.eng.Start("innkeeper"))

	s, _ := h.eng.Session()
	assert.Equal(t, "regular", s.DialogueID)
}

func TestStart_Rejections(t *testing.T) {
	tests := []struct {
		name string
		npc  string
		want error
	}{
		{"empty npc", "", ErrNoNPC},
		{"unknown npc", "ghost", ErrUnknownNPC},
		{"nothing eligible", "hermit", ErrNoDialogue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			err := h.eng.Start(tt.npc)
			require.ErrorIs(t, err, tt.want)
			assert.False(t, h.eng.Active())
			assert.Empty(t, h.rec.events)
			assert.Zero(t, h.saves)
		})
	}
}

func TestStart_EmptyDialogue(t *testing.T) {
	h := newHarness(t)
	h.defs.NPCDefs["mute"] = types.NPCDef{ID: "mute", Dialogues: []string{"empty"}}

	require.ErrorIs(t, h.eng.Start("mute"), ErrEmptyDialogue)
	assert.False(t, h.eng.Active())
	assert.Empty(t, h.rec.events)
}

func TestStart_MutualExclusion(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.Start("innkeeper"))
	before, _ := h.eng.Session()
	n := len(h.rec.events)

	require.ErrorIs(t, h.eng.Start("smith"), ErrAlreadyActive)
	require.ErrorIs(t, h.eng.ForceStart("smith", "smith_hello"), ErrAlreadyActive)

	after, _ := h.eng.Session()
	assert.Equal(t, before, after)
	assert.Len(t, h.rec.events, n)
}

func TestForceStart_IgnoresConditions(t *testing.T) {
	h := newHarness(t)
	h.player.SetFlag("greetDone", true)

	require.NoError(t, h.eng.ForceStart("innkeeper", "greet"))

	s, _ := h.eng.Session()
	assert.Equal(t, "greet", s.DialogueID)

	require.ErrorIs(t, h.eng.ForceStart("hermit", "hermit_secret"), ErrAlreadyActive)
}

func TestForceStart_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		npc, dlg string
		want     error
	}{
		{"empty npc", "", "greet", ErrNoNPC},
		{"empty dialogue id", "innkeeper", "", ErrNoDialogueID},
		{"unknown npc", "ghost", "greet", ErrUnknownNPC},
		{"unknown dialogue", "innkeeper", "missing", ErrUnknownDialogue},
		{"empty dialogue", "innkeeper", "empty", ErrEmptyDialogue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			require.ErrorIs(t, h.eng.ForceStart(tt.npc, tt.dlg), tt.want)
			assert.False(t, h.eng.Active())
			assert.Empty(t, h.rec.events)
		})
	}
}

func TestAdvanceLine_NotActive(t *testing.T) {
	h := newHarness(t)
	require.ErrorIs(t, h.eng.AdvanceLine(), ErrNotActive)
	require.ErrorIs(t, h.eng.MakeChoice(0), ErrNotActive)
	assert.Empty(t, h.rec.events)
}

func TestAdvanceLine_AwaitingChoice(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.Start("innkeeper"))
	n := len(h.rec.events)

	require.ErrorIs(t, h.eng.AdvanceLine(), ErrAwaitingChoice)

	s, _ := h.eng.Session()
	assert.Equal(t, 0, s.LineIndex)
	assert.Len(t, h.rec.events, n)
}

func TestAdvanceLine_PastLastLineCompletes(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.Start("smith"))

	require.NoError(t, h.eng.AdvanceLine())

	assert.False(t, h.eng.Active())
	last := h.rec.events[len(h.rec.events)-1]
	assert.Equal(t, types.EventDialogueEnded, last.Kind)
	assert.True(t, last.CompletedNaturally)
	assert.Equal(t, "smith_hello", last.DialogueID)
	assert.Equal(t, 1, h.saves)
}

func TestMakeChoice_InvalidIsNoop(t *testing.T) {
	tests := []struct {
		name  string
		index int
		want  error
	}{
		{"too large", 2, ErrChoiceOutOfRange},
		{"negative", -1, ErrChoiceOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			require.NoError(t, h.eng.Start("innkeeper"))
			before := h.player.Snapshot()
			n := len(h.rec.events)

			require.ErrorIs(t, h.eng.MakeChoice(tt.index), tt.want)

			s, _ := h.eng.Session()
			assert.Equal(t, 0, s.LineIndex)
			assert.Equal(t, before, h.player.Snapshot())
			assert.Len(t, h.rec.events, n)
		})
	}
}

func TestMakeChoice_NoChoices(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.Start("smith"))

	require.ErrorIs(t, h.eng.MakeChoice(0), ErrNoChoices)
	assert.True(t, h.eng.Active())
}

func TestMakeChoice_SequentialAndFlag(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.Start("innkeeper"))

	require.NoError(t, h.eng.MakeChoice(0))

	assert.True(t, h.player.GetFlag("metInnkeeper"))
	s, _ := h.eng.Session()
	assert.Equal(t, 1, s.LineIndex)

	made := h.rec.events[2]
	assert.Equal(t, types.EventChoiceMade, made.Kind)
	assert.Equal(t, 0, made.ChoiceIndex)
	assert.Equal(t, []types.Effect{{Kind: types.EffectSetFlag, Flag: "metInnkeeper"}}, made.Effects)
}

func TestMakeChoice_Jump(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.Start("innkeeper"))

	require.NoError(t, h.eng.MakeChoice(1))

	s, _ := h.eng.Session()
	assert.Equal(t, 2, s.LineIndex)
	assert.Equal(t, 5, h.player.GetRelationship("innkeeper"))
	line, ok := h.eng.CurrentLine()
	require.True(t, ok)
	assert.Equal(t, "Maybe later, then.", line.Text)
}

func TestMakeChoice_JumpPastEndCompletes(t *testing.T) {
	h := newHarness(t)
	dlg := h.defs.Dialogues["greet"]
	dlg.Lines[0].Choices[1].Next = intPtr(99)
	h.defs.Dialogues["greet"] = dlg

	require.NoError(t, h.eng.Start("innkeeper"))
	require.NoError(t, h.eng.MakeChoice(1))

	assert.False(t, h.eng.Active())
	assert.True(t, h.player.GetFlag("greetDone"))
}

func TestMakeChoice_RelationshipOtherNPC(t *testing.T) {
	h := newHarness(t)
	dlg := h.defs.Dialogues["greet"]
	dlg.Lines[0].Choices[1].RelationshipNPC = "smith"
	h.defs.Dialogues["greet"] = dlg

	require.NoError(t, h.eng.Start("innkeeper"))
	require.NoError(t, h.eng.MakeChoice(1))

	assert.Equal(t, 5, h.player.GetRelationship("smith"))
	assert.Zero(t, h.player.GetRelationship("innkeeper"))
}

func TestInnkeeper_EndToEnd(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.eng.Start("innkeeper"))
	require.NoError(t, h.eng.MakeChoice(1))
	require.NoError(t, h.eng.AdvanceLine())

	assert.False(t, h.eng.Active())
	assert.True(t, h.player.GetFlag("greetDone"))
	assert.False(t, h.player.GetFlag("metInnkeeper"))
	assert.Equal(t, 5, h.player.GetRelationship("innkeeper"))
	assert.Equal(t, 1, h.saves)

	assert.Equal(t, []types.EventKind{
		types.EventDialogueStarted,
		types.EventLineAdvanced,
		types.EventChoiceMade,
		types.EventLineAdvanced,
		types.EventDialogueEnded,
	}, h.rec.kinds())

	ended := h.rec.events[4]
	assert.True(t, ended.CompletedNaturally)
	assert.Equal(t, []types.Effect{{Kind: types.EffectSetFlag, Flag: "greetDone"}}, ended.Effects)

	// Completion flag gates the greeting out of the next conversation.
	require.NoError(t, h.eng.Start("innkeeper"))
	s, _ := h.eng.Session()
	assert.Equal(t, "regular", s.DialogueID)
}

func TestEnd_Abandon(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.Start("innkeeper"))

	assert.True(t, h.eng.End(false))

	assert.False(t, h.eng.Active())
	assert.False(t, h.player.GetFlag("greetDone"))
	assert.Equal(t, 1, h.saves)
	last := h.rec.events[len(h.rec.events)-1]
	assert.Equal(t, types.EventDialogueEnded, last.Kind)
	assert.False(t, last.CompletedNaturally)
	assert.Empty(t, last.Effects)
}

func TestEnd_ExplicitCompletion(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.Start("innkeeper"))

	assert.True(t, h.eng.End(true))
	assert.True(t, h.player.GetFlag("greetDone"))
}

func TestEnd_Idle(t *testing.T) {
	h := newHarness(t)
	assert.False(t, h.eng.End(true))
	assert.Empty(t, h.rec.events)
	assert.Zero(t, h.saves)
}

func TestSaveRequestedAfterEvents(t *testing.T) {
	h := newHarness(t)
	var seen int
	h.eng.saver = saverFunc(func() { seen = len(h.rec.events) })

	require.NoError(t, h.eng.Start("smith"))
	require.NoError(t, h.eng.AdvanceLine())

	assert.Equal(t, len(h.rec.events), seen)
	assert.Equal(t, types.EventDialogueEnded, h.rec.events[seen-1].Kind)
}

func TestReentrantCallsFromHandlers(t *testing.T) {
	bus := events.NewBus()
	defs := testDefs()
	eng := New(defs, state.NewPlayer(), WithPublisher(bus), WithLogger(observe.Discard()))

	var startErr, advanceErr, chooseErr error
	var endResult = true
	bus.Subscribe(func(evt types.Event) {
		if evt.Kind != types.EventLineAdvanced {
			return
		}
		startErr = eng.Start("innkeeper")
		advanceErr = eng.AdvanceLine()
		chooseErr = eng.MakeChoice(0)
		endResult = eng.End(false)
	})

	require.NoError(t, eng.Start("smith"))

	require.ErrorIs(t, startErr, ErrReentrant)
	require.ErrorIs(t, startErr, ErrAlreadyActive)
	require.ErrorIs(t, advanceErr, ErrReentrant)
	require.ErrorIs(t, advanceErr, ErrNotActive)
	require.ErrorIs(t, chooseErr, ErrNotActive)
	assert.False(t, endResult)

	s, ok := eng.Session()
	require.True(t, ok)
	assert.Equal(t, "smith", s.NPCID)

	// The guard is released once publishing is done.
	require.NoError(t, eng.AdvanceLine())
	assert.False(t, eng.Active())
}

func TestReentrantStartFromSaver(t *testing.T) {
	h := newHarness(t)
	var err error
	h.eng.saver = saverFunc(func() { err = h.eng.Start("innkeeper") })

	require.NoError(t, h.eng.Start("smith"))
	require.NoError(t, h.eng.AdvanceLine())

	require.True(t, errors.Is(err, ErrReentrant))
	assert.False(t, h.eng.Active())
	require.NoError(t, h.eng.Start("innkeeper"))
}

func TestDialogueRemovedMidSession(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.Start("smith"))
	delete(h.defs.Dialogues, "smith_hello")

	require.ErrorIs(t, h.eng.AdvanceLine(), ErrDialogueGone)

	assert.False(t, h.eng.Active())
	assert.Equal(t, 1, h.saves)
	last := h.rec.events[len(h.rec.events)-1]
	assert.Equal(t, types.EventDialogueEnded, last.Kind)
	assert.False(t, last.CompletedNaturally)
}

func TestSessionIDs(t *testing.T) {
	n := 0
	h := newHarness(t, WithSessionIDs(func() string {
		n++
		return "sess-" + string(rune('0'+n))
	}))

	require.NoError(t, h.eng.Start("smith"))
	s, _ := h.eng.Session()
	assert.Equal(t, "sess-1", s.ID)
	require.NoError(t, h.eng.AdvanceLine())

	for _, evt := range h.rec.events {
		assert.Equal(t, "sess-1", evt.SessionID)
	}
}

func TestQueries(t *testing.T) {
	h := newHarness(t)

	assert.True(t, h.eng.HasAvailableDialogue("innkeeper"))
	assert.False(t, h.eng.HasAvailableDialogue("hermit"))
	assert.False(t, h.eng.HasAvailableDialogue("ghost"))
	assert.Equal(t, []string{"greet", "regular"}, h.eng.AvailableDialogues("innkeeper"))
	assert.Nil(t, h.eng.AvailableDialogues("ghost"))

	_, ok := h.eng.CurrentLine()
	assert.False(t, ok)
	assert.Zero(t, h.eng.LineCount())

	require.NoError(t, h.eng.Start("innkeeper"))
	npc, ok := h.eng.CurrentNPC()
	require.True(t, ok)
	assert.Equal(t, "Innkeeper", npc.Name)
	assert.Equal(t, 3, h.eng.LineCount())
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := observe.NewMetrics(mp)
	require.NoError(t, err)

	h := newHarness(t, WithMetrics(m))
	require.NoError(t, h.eng.Start("innkeeper"))
	require.ErrorIs(t, h.eng.AdvanceLine(), ErrAwaitingChoice)
	require.NoError(t, h.eng.MakeChoice(1))
	require.NoError(t, h.eng.AdvanceLine())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	assert.Equal(t, int64(1), sumOf(t, rm, "parley.conversations.started"))
	assert.Equal(t, int64(1), sumOf(t, rm, "parley.conversations.ended"))
	assert.Equal(t, int64(1), sumOf(t, rm, "parley.choices.made"))
	assert.Equal(t, int64(2), sumOf(t, rm, "parley.lines.advanced"))
	assert.Equal(t, int64(1), sumOf(t, rm, "parley.operations.rejected"))
	assert.Equal(t, int64(0), sumOf(t, rm, "parley.conversations.active"))
}

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is %T", name, m.Data)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}
