package database

import (
	"context"
	"fmt"
	"io"

	"slot-bot/lease"
	"slot-bot/model"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStore opens the slot store selected by cfg.StoreDriver.
func OpenStore(cfg *model.Config) (lease.Store, io.Closer, error) {
	switch cfg.StoreDriver {
	case model.StoreSQLite, "":
		db, err := InitSlotDB(cfg.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil
	case model.StoreJSON:
		return NewSlotFile(cfg.SlotsFile), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// OpenChecked opens the store and reads it once. A store that exists but
// cannot be read is an error here rather than at the first command.
func OpenChecked(ctx context.Context, cfg *model.Config) (lease.Store, io.Closer, error) {
	store, closer, err := OpenStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	if _, err := store.Load(ctx); err != nil {
		closer.Close()
		return nil, nil, fmt.Errorf("slot store is unreadable: %w", err)
	}
	return store, closer, nil
}

// Copy loads every slot from src and saves the collection into dst, replacing
// what dst held. It returns the number of slots copied.
func Copy(ctx context.Context, dst, src lease.Store) (int, error) {
	slots, err := src.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load source slots: %w", err)
	}
	if err := dst.Save(ctx, slots); err != nil {
		return 0, fmt.Errorf("failed to save slots: %w", err)
	}
	return len(slots), nil
}
