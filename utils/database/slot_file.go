package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"slot-bot/lease"
	"slot-bot/model"
)

// slotDocument is the on-disk layout of the slots file. Field names match the
// slots.json written by the first version of the bot.
type slotDocument struct {
	Slots map[string]slotEntry `json:"slots"`
}

type slotEntry struct {
	Owner        string  `json:"owner"`
	ExpiresAt    string  `json:"expires_at"`
	Warned       bool    `json:"warned"`
	WarningCount int     `json:"warnings"`
	Paused       bool    `json:"paused"`
	LastUsed     *string `json:"last_used"`
}

// SlotFile stores slots in a single JSON document. Save writes a temporary file
// next to the target and renames it into place.
type SlotFile struct {
	path string
	mu   sync.Mutex
}

func NewSlotFile(path string) *SlotFile {
	return &SlotFile{path: path}
}

// Path returns the location of the document.
func (f *SlotFile) Path() string {
	return f.path
}

// Size returns the size in bytes of the document, zero when it does not exist yet.
func (f *SlotFile) Size() (int64, error) {
	info, err := os.Stat(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Load reads the document. A missing file is an empty collection; a file that
// cannot be parsed or holds an invalid slot is a persistence failure.
func (f *SlotFile) Load(_ context.Context) (model.Slots, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.Slots{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w: %w", f.path, lease.ErrPersistence, err)
	}

	var doc slotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w: %w", f.path, lease.ErrPersistence, err)
	}

	slots := make(model.Slots, len(doc.Slots))
	for id, entry := range doc.Slots {
		rec, err := entry.record(id)
		if err == nil {
			err = Validate(rec)
		}
		if err != nil {
			return nil, fmt.Errorf("corrupt slot %s in %s: %w: %w", id, f.path, lease.ErrPersistence, err)
		}
		slots[id] = rec
	}
	return slots, nil
}

// Save atomically replaces the document with slots.
func (f *SlotFile) Save(_ context.Context, slots model.Slots) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc := slotDocument{Slots: make(map[string]slotEntry, len(slots))}
	for id, rec := range slots {
		doc.Slots[id] = entryFromRecord(rec)
	}
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode slots: %w: %w", lease.ErrPersistence, err)
	}

	if err := writeFileAtomic(f.path, data); err != nil {
		return fmt.Errorf("failed to write %s: %w: %w", f.path, lease.ErrPersistence, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func entryFromRecord(rec model.SlotRecord) slotEntry {
	entry := slotEntry{
		Owner:        rec.Owner,
		ExpiresAt:    FormatTime(rec.ExpiresAt),
		Warned:       rec.Warned,
		WarningCount: rec.WarningCount,
		Paused:       rec.Paused,
	}
	if rec.LastBroadcastAt != nil {
		last := FormatTime(*rec.LastBroadcastAt)
		entry.LastUsed = &last
	}
	return entry
}

func (e slotEntry) record(id string) (model.SlotRecord, error) {
	expires, err := ParseTime(e.ExpiresAt)
	if err != nil {
		return model.SlotRecord{}, err
	}
	rec := model.SlotRecord{
		ID:           id,
		Owner:        e.Owner,
		ExpiresAt:    expires,
		Warned:       e.Warned,
		WarningCount: e.WarningCount,
		Paused:       e.Paused,
	}
	if e.LastUsed != nil && *e.LastUsed != "" {
		last, err := ParseTime(*e.LastUsed)
		if err != nil {
			return model.SlotRecord{}, err
		}
		rec.LastBroadcastAt = &last
	}
	return rec, nil
}
