package lease

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"slot-bot/model"
)

// SweepReport summarises one sweep.
type SweepReport struct {
	RunID    string
	Checked  int
	Warned   int
	Expired  int
	Orphaned int
	Failures int
	Took     time.Duration
}

func (r SweepReport) attrs() []any {
	return []any{
		slog.String("run", r.RunID),
		slog.Int("checked", r.Checked),
		slog.Int("warned", r.Warned),
		slog.Int("expired", r.Expired),
		slog.Int("orphaned", r.Orphaned),
		slog.Int("failures", r.Failures),
		slog.Duration("took", r.Took),
	}
}

type sweepOutcome struct {
	id     string
	orphan bool
	t      Transition
}

// Sweep applies SweepCheck to every slot at one instant. Channel existence is
// looked up before the lock is taken; the collection is then loaded and saved once.
// A slot whose actions fail is still removed and does not affect other slots.
// Only a persistence failure aborts the sweep.
func (s *Service) Sweep(ctx context.Context) (SweepReport, error) {
	started := time.Now()
	report := SweepReport{RunID: uuid.NewString()}

	exists, err := s.lookupChannels(ctx)
	if err != nil {
		return report, err
	}

	checked, outcomes, err := s.sweepState(ctx, exists)
	if err != nil {
		return report, err
	}

	report.Checked = checked
	for _, o := range outcomes {
		switch {
		case o.orphan:
			report.Orphaned++
		case o.t.Deleted:
			report.Expired++
		default:
			report.Warned++
		}
		if err := Apply(ctx, s.gw, o.t.Actions); err != nil {
			report.Failures++
			s.log.Error("Sweep actions failed", slog.String("run", report.RunID), slog.String("slot", o.id), slog.Any("error", err))
		}
	}
	report.Took = time.Since(started)

	s.log.Info("Sweep finished", report.attrs()...)
	return report, nil
}

// lookupChannels asks the gateway whether each stored slot still has its channel.
// A failed lookup counts as present so transient errors never purge a slot.
func (s *Service) lookupChannels(ctx context.Context) (map[string]bool, error) {
	s.mu.Lock()
	slots, err := s.load(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	exists := make(map[string]bool, len(slots))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.lookupLimit)
	for id := range slots {
		g.Go(func() error {
			ok, err := s.gw.ResourceExists(gctx, id)
			if err != nil {
				s.log.Warn("Channel lookup failed", slog.String("slot", id), slog.Any("error", err))
				ok = true
			}
			mu.Lock()
			exists[id] = ok
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return exists, nil
}

func (s *Service) sweepState(ctx context.Context, exists map[string]bool) (int, []sweepOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots, err := s.load(ctx)
	if err != nil {
		return 0, nil, err
	}
	checked := len(slots)

	now := s.now()
	var outcomes []sweepOutcome
	for id, rec := range slots {
		present, seen := exists[id]
		if !seen {
			// stored after the lookup ran
			present = true
		}
		t, err := SweepCheck(&rec, now, present)
		if err != nil || !t.Changed() {
			continue
		}
		if t.Deleted {
			delete(slots, id)
		} else {
			slots[id] = *t.Record
		}
		outcomes = append(outcomes, sweepOutcome{id: id, orphan: !present, t: t})
	}

	if len(outcomes) == 0 {
		return checked, nil, nil
	}
	if err := s.save(ctx, slots); err != nil {
		return checked, nil, err
	}
	for i := range outcomes {
		if outcomes[i].t.Deleted {
			outcomes[i].t.Actions = keepSharedRole(slots, outcomes[i].t.Actions)
		}
	}
	return checked, outcomes, nil
}

// ExpiringWithin returns the slots whose lease ends within d of now.
func (s *Service) ExpiringWithin(ctx context.Context, d time.Duration) ([]model.SlotRecord, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var out []model.SlotRecord
	for _, rec := range all {
		if rec.Remaining(now) < d {
			out = append(out, rec)
		}
	}
	return out, nil
}
