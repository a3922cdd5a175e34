package lease

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"slot-bot/model"
)

// Service is the single writer of the slot collection. Every load, mutate and
// save cycle runs under one lock, sweeps and commands alike. Gateway calls are
// made after the lock is released.
type Service struct {
	mu         sync.Mutex
	store      Store
	gw         Gateway
	now        func() time.Time
	log        *slog.Logger
	lookupLimit int
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger used for sweep and gateway reports.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithLookupLimit bounds the concurrent ResourceExists calls made by a sweep.
func WithLookupLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.lookupLimit = n
		}
	}
}

func NewService(store Store, gw Gateway, opts ...Option) *Service {
	s := &Service{
		store:      store,
		gw:         gw,
		now:        time.Now,
		log:        slog.Default(),
		lookupLimit: 5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result is what a command reports back: the slot as it was left and whether
// the command removed it.
type Result struct {
	Record  model.SlotRecord
	Deleted bool
}

type rule func(rec *model.SlotRecord, now time.Time) (Transition, error)

func (s *Service) load(ctx context.Context) (model.Slots, error) {
	slots, err := s.store.Load(ctx)
	if err != nil {
		return nil, persistErr("load", err)
	}
	if slots == nil {
		slots = model.Slots{}
	}
	return slots, nil
}

func (s *Service) save(ctx context.Context, slots model.Slots) error {
	if err := s.store.Save(ctx, slots); err != nil {
		return persistErr("save", err)
	}
	return nil
}

func persistErr(op string, err error) error {
	if errors.Is(err, ErrPersistence) {
		return fmt.Errorf("%s slots: %w", op, err)
	}
	return fmt.Errorf("%s slots: %w: %w", op, ErrPersistence, err)
}

// update applies r to slot id and persists the outcome, all under the lock.
func (s *Service) update(ctx context.Context, id string, r rule) (Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots, err := s.load(ctx)
	if err != nil {
		return Transition{}, err
	}

	var current *model.SlotRecord
	if rec, ok := slots[id]; ok {
		current = &rec
	}
	t, err := r(current, s.now())
	if err != nil {
		return Transition{}, err
	}
	if !t.Changed() {
		return t, nil
	}

	if t.Deleted {
		delete(slots, id)
	} else {
		slots[id] = *t.Record
	}
	if err := s.save(ctx, slots); err != nil {
		return Transition{}, err
	}
	if t.Deleted {
		t.Actions = keepSharedRole(slots, t.Actions)
	}
	return t, nil
}

// keepSharedRole drops role revocations for owners who still hold a slot in
// slots. The slot role is one role per guild, not one per channel.
func keepSharedRole(slots model.Slots, actions []model.Action) []model.Action {
	out := actions[:0:0]
	for _, a := range actions {
		if a.Kind == model.ActionRevokeRole && ownsSlot(slots, a.UserID) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func ownsSlot(slots model.Slots, owner string) bool {
	for _, rec := range slots {
		if rec.Owner == owner {
			return true
		}
	}
	return false
}

// run applies r and then its external actions. Gateway failures are returned
// but the committed state change stands.
func (s *Service) run(ctx context.Context, id string, r rule) (Result, error) {
	t, err := s.update(ctx, id, r)
	if err != nil {
		return Result{}, err
	}
	res := Result{Deleted: t.Deleted}
	if t.Record != nil {
		res.Record = *t.Record
	}
	if err := Apply(ctx, s.gw, t.Actions); err != nil {
		s.log.Warn("Slot actions failed", slog.String("slot", id), slog.Any("error", err))
		return res, err
	}
	return res, nil
}

// Create opens a channel for owner and leases it for days days.
func (s *Service) Create(ctx context.Context, owner string, days int) (Result, error) {
	if days <= 0 {
		return Result{}, fmt.Errorf("duration must be at least one day, got %d: %w", days, ErrInvalidPrecondition)
	}

	id, err := s.gw.CreateResource(ctx, owner)
	if err != nil {
		return Result{}, fmt.Errorf("create channel for %s: %w: %w", owner, ErrGateway, err)
	}

	res, err := s.run(ctx, id, func(rec *model.SlotRecord, now time.Time) (Transition, error) {
		return Create(id, owner, days, now, rec)
	})
	if errors.Is(err, ErrPersistence) {
		// the slot was never stored, so nothing references the new channel
		if derr := s.gw.DeleteResource(ctx, id); derr != nil {
			s.log.Error("Failed to remove channel of rejected slot", slog.String("slot", id), slog.Any("error", derr))
		}
	}
	return res, err
}

// Extend adds days days to the lease on id.
func (s *Service) Extend(ctx context.Context, id string, days int) (Result, error) {
	return s.run(ctx, id, func(rec *model.SlotRecord, now time.Time) (Transition, error) {
		return Extend(rec, days, now)
	})
}

// Pause restricts writes in slot id pending review.
func (s *Service) Pause(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, id, func(rec *model.SlotRecord, _ time.Time) (Transition, error) {
		return Pause(rec)
	})
}

// Resume lifts a pause on slot id.
func (s *Service) Resume(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, id, func(rec *model.SlotRecord, _ time.Time) (Transition, error) {
		return Resume(rec)
	})
}

// Warn issues a warning on slot id. The third warning deletes the slot.
func (s *Service) Warn(ctx context.Context, id, issuedBy string) (Result, error) {
	return s.run(ctx, id, func(rec *model.SlotRecord, _ time.Time) (Transition, error) {
		return Warn(rec, issuedBy)
	})
}

// Delete ends the lease on id, revoking the role and removing the channel.
func (s *Service) Delete(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, id, func(rec *model.SlotRecord, _ time.Time) (Transition, error) {
		return Delete(rec)
	})
}

// Broadcast sends an @everyone or @here alert from slot id, at most once per
// BroadcastWindow. The window is reserved before sending and given back if the
// message could not be delivered.
func (s *Service) Broadcast(ctx context.Context, id, audience string) (Result, error) {
	var previous *time.Time
	t, err := s.update(ctx, id, func(rec *model.SlotRecord, now time.Time) (Transition, error) {
		if rec != nil {
			previous = rec.LastBroadcastAt
		}
		return Broadcast(rec, audience, now)
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{Record: *t.Record}
	if err := Apply(ctx, s.gw, t.Actions); err != nil {
		if rerr := s.releaseBroadcast(ctx, id, *t.Record.LastBroadcastAt, previous); rerr != nil {
			s.log.Error("Failed to release broadcast window", slog.String("slot", id), slog.Any("error", rerr))
		}
		return res, err
	}
	return res, nil
}

func (s *Service) releaseBroadcast(ctx context.Context, id string, reserved time.Time, previous *time.Time) error {
	_, err := s.update(ctx, id, func(rec *model.SlotRecord, _ time.Time) (Transition, error) {
		if rec == nil || rec.LastBroadcastAt == nil || !rec.LastBroadcastAt.Equal(reserved) {
			return Transition{}, nil
		}
		r := rec.Clone()
		r.LastBroadcastAt = previous
		return kept(r), nil
	})
	return err
}

// Alert posts the anti-scam notice in slot id.
func (s *Service) Alert(ctx context.Context, id, issuedBy string) error {
	rec, err := s.Details(ctx, id)
	if err != nil {
		return err
	}
	return Apply(ctx, s.gw, []model.Action{notify(rec, model.Notice{Kind: model.MessageScamAlert, IssuedBy: issuedBy})})
}

// Details returns the slot stored under id.
func (s *Service) Details(ctx context.Context, id string) (model.SlotRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots, err := s.load(ctx)
	if err != nil {
		return model.SlotRecord{}, err
	}
	rec, ok := slots[id]
	if !ok {
		return model.SlotRecord{}, fmt.Errorf("slot %s: %w", id, ErrNotFound)
	}
	return rec, nil
}

// List returns every slot ordered by expiry, soonest first.
func (s *Service) List(ctx context.Context) ([]model.SlotRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.SlotRecord, 0, len(slots))
	for _, rec := range slots {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ExpiresAt.Before(out[j].ExpiresAt)
	})
	return out, nil
}
