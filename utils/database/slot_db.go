package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"slot-bot/lease"
	"slot-bot/model"
)

// slotRow is the sqlite shape of a slot record.
type slotRow struct {
	ID              string         `db:"id"`
	Owner           string         `db:"owner"`
	ExpiresAt       string         `db:"expires_at"`
	Warned          bool           `db:"warned"`
	WarningCount    int            `db:"warning_count"`
	Paused          bool           `db:"paused"`
	LastBroadcastAt sql.NullString `db:"last_broadcast_at"`
}

// SlotDB stores slots in a sqlite database. Save replaces the whole table in a
// single transaction, so a crash leaves either the old or the new collection.
type SlotDB struct {
	db *sqlx.DB
}

// InitSlotDB opens the slot database at dbPath and ensures the table exists.
func InitSlotDB(dbPath string) (*SlotDB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create data directory for %s: %w", dbPath, err)
	}

	db, err := sqlx.Connect("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to slot database: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	schema := `
    CREATE TABLE IF NOT EXISTS slots (
        id TEXT PRIMARY KEY,
        owner TEXT NOT NULL,
        expires_at TEXT NOT NULL,
        warned BOOLEAN NOT NULL DEFAULT 0,
        warning_count INTEGER NOT NULL DEFAULT 0,
        paused BOOLEAN NOT NULL DEFAULT 0,
        last_broadcast_at TEXT
    );`

	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create slots table: %w", err)
	}

	return &SlotDB{db: db}, nil
}

// Close closes the underlying database.
func (s *SlotDB) Close() error {
	return s.db.Close()
}

// Load reads every slot. A row that fails validation is a persistence failure.
func (s *SlotDB) Load(ctx context.Context) (model.Slots, error) {
	var rows []slotRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM slots"); err != nil {
		return nil, fmt.Errorf("failed to read slots: %w: %w", lease.ErrPersistence, err)
	}

	slots := make(model.Slots, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, fmt.Errorf("corrupt slot %s: %w: %w", row.ID, lease.ErrPersistence, err)
		}
		if err := Validate(rec); err != nil {
			return nil, fmt.Errorf("corrupt slot %s: %w: %w", row.ID, lease.ErrPersistence, err)
		}
		slots[rec.ID] = rec
	}
	return slots, nil
}

// Save replaces the stored collection with slots.
func (s *SlotDB) Save(ctx context.Context, slots model.Slots) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin slot transaction: %w: %w", lease.ErrPersistence, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM slots"); err != nil {
		return fmt.Errorf("failed to clear slots: %w: %w", lease.ErrPersistence, err)
	}

	query := `INSERT INTO slots (id, owner, expires_at, warned, warning_count, paused, last_broadcast_at)
              VALUES (:id, :owner, :expires_at, :warned, :warning_count, :paused, :last_broadcast_at)`
	for id, rec := range slots {
		rec.ID = id
		if _, err := tx.NamedExecContext(ctx, query, rowFromRecord(rec)); err != nil {
			return fmt.Errorf("failed to insert slot %s: %w: %w", id, lease.ErrPersistence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit slots: %w: %w", lease.ErrPersistence, err)
	}
	return nil
}

// Size returns the size in bytes of the database file.
func (s *SlotDB) Size() (int64, error) {
	var pages, pageSize int64
	if err := s.db.Get(&pages, "PRAGMA page_count"); err != nil {
		return 0, err
	}
	if err := s.db.Get(&pageSize, "PRAGMA page_size"); err != nil {
		return 0, err
	}
	return pages * pageSize, nil
}

func rowFromRecord(rec model.SlotRecord) slotRow {
	row := slotRow{
		ID:           rec.ID,
		Owner:        rec.Owner,
		ExpiresAt:    FormatTime(rec.ExpiresAt),
		Warned:       rec.Warned,
		WarningCount: rec.WarningCount,
		Paused:       rec.Paused,
	}
	if rec.LastBroadcastAt != nil {
		row.LastBroadcastAt = sql.NullString{String: FormatTime(*rec.LastBroadcastAt), Valid: true}
	}
	return row
}

func (row slotRow) record() (model.SlotRecord, error) {
	expires, err := ParseTime(row.ExpiresAt)
	if err != nil {
		return model.SlotRecord{}, err
	}
	rec := model.SlotRecord{
		ID:           row.ID,
		Owner:        row.Owner,
		ExpiresAt:    expires,
		Warned:       row.Warned,
		WarningCount: row.WarningCount,
		Paused:       row.Paused,
	}
	if row.LastBroadcastAt.Valid && row.LastBroadcastAt.String != "" {
		last, err := ParseTime(row.LastBroadcastAt.String)
		if err != nil {
			return model.SlotRecord{}, err
		}
		rec.LastBroadcastAt = &last
	}
	return rec, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	// naive timestamps written by the first version of the bot, always UTC
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// FormatTime renders t as an RFC 3339 UTC timestamp.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime reads an ISO-8601 timestamp. Timestamps without an offset are UTC.
func ParseTime(value string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}

// Validate checks the invariants a stored slot must hold.
func Validate(rec model.SlotRecord) error {
	switch {
	case rec.ID == "":
		return errors.New("empty slot id")
	case rec.Owner == "":
		return errors.New("empty owner")
	case rec.ExpiresAt.IsZero():
		return errors.New("missing expiry")
	case rec.WarningCount < 0 || rec.WarningCount >= model.MaxWarnings:
		return fmt.Errorf("warning count %d out of range", rec.WarningCount)
	}
	return nil
}
