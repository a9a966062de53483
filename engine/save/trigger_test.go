package save

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/parley/engine/state"
	"github.com/nathoo/parley/observe"
)

type memBackend struct {
	mu     sync.Mutex
	slots  map[string][]byte
	writes int
	fail   error
}

func newMemBackend() *memBackend {
	return &memBackend{slots: map[string][]byte{}}
}

func (b *memBackend) Write(_ context.Context, slot string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	b.writes++
	b.slots[slot] = append([]byte(nil), data...)
	return nil
}

func (b *memBackend) Read(_ context.Context, slot string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.slots[slot]
	if !ok {
		return nil, ErrNoSave
	}
	return data, nil
}

func TestTrigger_RequestSaveWritesSnapshot(t *testing.T) {
	backend := newMemBackend()
	p := state.NewPlayer()
	p.SetFlag("greetDone", true)
	tr := NewTrigger(backend, p, WithGame(testGame), WithLogger(observe.Discard()))

	tr.RequestSave()
	// Later changes must not leak into the snapshot already taken.
	p.SetFlag("late", true)
	tr.Wait()

	sd, err := Load(backend.slots[DefaultSlot])
	require.NoError(t, err)
	assert.True(t, sd.Player.Flags["greetDone"])
	assert.NotContains(t, sd.Player.Flags, "late")
	assert.Equal(t, "Test Game", sd.Game)
}

func TestTrigger_NewestSnapshotWins(t *testing.T) {
	backend := newMemBackend()
	p := state.NewPlayer()
	tr := NewTrigger(backend, p, WithSlot("slot1"), WithLogger(observe.Discard()))

	for i := 1; i <= 25; i++ {
		p.SetCounter("n", i)
		tr.RequestSave()
	}
	tr.Wait()

	sd, err := Load(backend.slots["slot1"])
	require.NoError(t, err)
	assert.Equal(t, 25, sd.Player.Counters["n"])
	assert.LessOrEqual(t, backend.writes, 25)
}

func TestTrigger_FailureIsNotSurfaced(t *testing.T) {
	backend := newMemBackend()
	backend.fail = errors.New("disk full")
	tr := NewTrigger(backend, state.NewPlayer(), WithLogger(observe.Discard()))

	tr.RequestSave()
	tr.Wait()

	assert.Empty(t, backend.slots)
	require.ErrorContains(t, tr.SaveNow(context.Background()), "disk full")
}

func TestTrigger_LoadInto(t *testing.T) {
	backend := newMemBackend()
	p := state.NewPlayer()
	p.ModifyRelationship("innkeeper", 7)
	tr := NewTrigger(backend, p, WithLogger(observe.Discard()))
	require.NoError(t, tr.SaveNow(context.Background()))

	p2 := state.NewPlayer()
	_, err := NewTrigger(backend, p2).LoadInto(context.Background(), p2)
	require.NoError(t, err)
	assert.Equal(t, 7, p2.GetRelationship("innkeeper"))
}

func TestTrigger_LoadIntoEmptySlot(t *testing.T) {
	tr := NewTrigger(newMemBackend(), state.NewPlayer())
	_, err := tr.LoadInto(context.Background(), state.NewPlayer())
	require.ErrorIs(t, err, ErrNoSave)
}

func TestFileBackend_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	b := NewFileBackend(dir + "/saves")
	ctx := context.Background()

	_, err := b.Read(ctx, "main")
	require.ErrorIs(t, err, ErrNoSave)

	require.NoError(t, b.Write(ctx, "main", []byte(`{"a":1}`)))
	require.NoError(t, b.Write(ctx, "main", []byte(`{"a":2}`)))

	data, err := b.Read(ctx, "main")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(data))
}

func TestFileBackend_RejectsBadSlots(t *testing.T) {
	b := NewFileBackend(t.TempDir())
	for _, slot := range []string{"", "  ", "../x", "a/b", ".."} {
		assert.Error(t, b.Write(context.Background(), slot, []byte("{}")), "slot %q", slot)
	}
}

func TestFileBackend_Slots(t *testing.T) {
	dir := t.TempDir()
	b := NewFileBackend(filepath.Join(dir, "saves"))
	ctx := context.Background()

	slots, err := b.Slots(ctx)
	require.NoError(t, err)
	assert.Empty(t, slots)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, slot := range []string{"old", "newest", "middle"} {
		require.NoError(t, b.Write(ctx, slot, []byte("{}")))
		mod := base.Add(time.Duration([]int{0, 2, 1}[i]) * time.Hour)
		require.NoError(t, os.Chtimes(filepath.Join(b.Dir, slot+".json"), mod, mod))
	}
	require.NoError(t, os.WriteFile(filepath.Join(b.Dir, "notes.txt"), []byte("x"), 0o644))

	slots, err = b.Slots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"newest", "middle", "old"}, slots)
}
