package save

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoSave is returned by Backend.Read when the slot has never been written.
var ErrNoSave = errors.New("no save in slot")

// Backend stores encoded saves by slot name.
type Backend interface {
	Write(ctx context.Context, slot string, data []byte) error
	Read(ctx context.Context, slot string) ([]byte, error)
}

// Lister is implemented by backends that can enumerate their slots.
type Lister interface {
	Slots(ctx context.Context) ([]string, error)
}

// FileBackend stores each slot as <Dir>/<slot>.json.
type FileBackend struct {
	Dir string
}

// NewFileBackend returns a backend rooted at dir. The directory is created on
// first write.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{Dir: dir}
}

func (b *FileBackend) path(slot string) (string, error) {
	if strings.TrimSpace(slot) == "" {
		return "", fmt.Errorf("save slot is required")
	}
	if strings.ContainsAny(slot, `/\`) || slot == "." || slot == ".." {
		return "", fmt.Errorf("invalid save slot %q", slot)
	}
	return filepath.Join(b.Dir, slot+".json"), nil
}

// Write replaces the slot atomically: it writes a temp file in the same
// directory and renames it over the old save.
func (b *FileBackend) Write(ctx context.Context, slot string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := b.path(slot)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(b.Dir, 0o755); err != nil {
		return fmt.Errorf("creating save directory %s: %w", b.Dir, err)
	}

	tmp, err := os.CreateTemp(b.Dir, slot+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp save: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp save: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing save %s: %w", path, err)
	}
	return nil
}

// Read returns the slot's contents, or ErrNoSave.
func (b *FileBackend) Read(ctx context.Context, slot string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := b.path(slot)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSave
	}
	if err != nil {
		return nil, fmt.Errorf("reading save %s: %w", path, err)
	}
	return data, nil
}

// Slots returns the saved slot names, most recently written first. A missing
// directory has no slots.
func (b *FileBackend) Slots(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(b.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing saves in %s: %w", b.Dir, err)
	}

	type slot struct {
		name string
		mod  int64
	}
	var slots []slot
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".json")
		if !ok || e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		slots = append(slots, slot{name: name, mod: info.ModTime().UnixNano()})
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].mod != slots[j].mod {
			return slots[i].mod > slots[j].mod
		}
		return slots[i].name < slots[j].name
	})

	names := make([]string, len(slots))
	for i, s := range slots {
		names[i] = s.name
	}
	return names, nil
}
