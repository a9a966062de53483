package save

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nathoo/parley/engine/state"
	"github.com/nathoo/parley/observe"
	"github.com/nathoo/parley/types"
)

// DefaultSlot is the slot used when none is configured.
const DefaultSlot = "autosave"

// writeTimeout bounds a single background write.
const writeTimeout = 10 * time.Second

// Snapshotter produces a detached copy of player state.
type Snapshotter interface {
	Snapshot() types.PlayerSnapshot
}

// Trigger persists player state when asked. RequestSave returns
// immediately; the write happens on a background goroutine. Writes are
// serialized, and a snapshot taken earlier never replaces one taken later.
type Trigger struct {
	backend Backend
	src     Snapshotter
	slot    string
	game    types.GameDef
	log     *slog.Logger
	metrics *observe.Metrics
	now     func() time.Time

	seq     atomic.Uint64
	mu      sync.Mutex // held for each backend write
	written uint64     // seq of the newest snapshot written; guarded by mu
	wg      sync.WaitGroup
}

// Option configures a Trigger.
type Option func(*Trigger)

// WithSlot sets the save slot. Default: DefaultSlot.
func WithSlot(slot string) Option {
	return func(t *Trigger) { t.slot = slot }
}

// WithGame records the content pack's title and version in each save.
func WithGame(g types.GameDef) Option {
	return func(t *Trigger) { t.game = g }
}

// WithLogger sets the logger for write failures.
func WithLogger(l *slog.Logger) Option {
	return func(t *Trigger) { t.log = l }
}

// WithMetrics counts backend writes.
func WithMetrics(m *observe.Metrics) Option {
	return func(t *Trigger) { t.metrics = m }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(t *Trigger) { t.now = now }
}

// NewTrigger creates a trigger that snapshots src and writes to backend.
func NewTrigger(backend Backend, src Snapshotter, opts ...Option) *Trigger {
	t := &Trigger{
		backend: backend,
		src:     src,
		slot:    DefaultSlot,
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Slot returns the configured save slot.
func (t *Trigger) Slot() string { return t.slot }

// RequestSave snapshots player state now and writes it in the background.
// Failures are logged, not returned.
func (t *Trigger) RequestSave() {
	seq, data, err := t.encode()
	if err != nil {
		t.log.Error("encoding save", "slot", t.slot, "err", err)
		t.metrics.RecordSave(context.Background(), "error")
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := t.write(ctx, seq, data); err != nil {
			t.log.Error("writing save", "slot", t.slot, "err", err)
		}
	}()
}

// SaveNow snapshots and writes synchronously.
func (t *Trigger) SaveNow(ctx context.Context) error {
	seq, data, err := t.encode()
	if err != nil {
		t.metrics.RecordSave(ctx, "error")
		return fmt.Errorf("encoding save: %w", err)
	}
	return t.write(ctx, seq, data)
}

// Wait blocks until every background write has finished.
func (t *Trigger) Wait() {
	t.wg.Wait()
}

// LoadInto reads the slot and restores it onto p.
func (t *Trigger) LoadInto(ctx context.Context, p *state.Player) (*SaveData, error) {
	t.Wait()
	raw, err := t.backend.Read(ctx, t.slot)
	if err != nil {
		return nil, err
	}
	sd, err := Load(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding save %q: %w", t.slot, err)
	}
	ApplySave(p, sd)
	return sd, nil
}

func (t *Trigger) encode() (uint64, []byte, error) {
	snap := t.src.Snapshot()
	seq := t.seq.Add(1)
	data, err := Save(snap, t.game, t.now())
	return seq, data, err
}

// write stores data unless a newer snapshot has already been written.
func (t *Trigger) write(ctx context.Context, seq uint64, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if seq <= t.written {
		return nil
	}
	if err := t.backend.Write(ctx, t.slot, data); err != nil {
		t.metrics.RecordSave(ctx, "error")
		return err
	}
	t.written = seq
	t.metrics.RecordSave(ctx, "ok")
	return nil
}
