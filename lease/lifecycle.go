package lease

import (
	"fmt"
	"time"

	"slot-bot/model"
)

// WarningLead is how long before expiry the owner is told the slot is about to end.
const WarningLead = 24 * time.Hour

// Day is the unit for lease durations.
const Day = 24 * time.Hour

// Transition is the result of applying one lifecycle rule to a record.
// Record holds the last state of the slot, also when Deleted is set.
type Transition struct {
	Record  *model.SlotRecord
	Deleted bool
	Actions []model.Action
}

// Changed reports whether the transition touched persisted state.
func (t Transition) Changed() bool {
	return t.Record != nil
}

func kept(rec model.SlotRecord, actions ...model.Action) Transition {
	return Transition{Record: &rec, Actions: actions}
}

func deleted(rec model.SlotRecord, actions ...model.Action) Transition {
	return Transition{Record: &rec, Deleted: true, Actions: actions}
}

func notify(rec model.SlotRecord, n model.Notice) model.Action {
	n.OwnerID = rec.Owner
	if n.ExpiresAt.IsZero() {
		n.ExpiresAt = rec.ExpiresAt
	}
	return model.Action{Kind: model.ActionNotify, ResourceID: rec.ID, UserID: rec.Owner, Notice: n}
}

func revokeRole(rec model.SlotRecord) model.Action {
	return model.Action{Kind: model.ActionRevokeRole, ResourceID: rec.ID, UserID: rec.Owner}
}

func deleteResource(rec model.SlotRecord) model.Action {
	return model.Action{Kind: model.ActionDeleteResource, ResourceID: rec.ID, UserID: rec.Owner}
}

func mustExist(rec *model.SlotRecord) (model.SlotRecord, error) {
	if rec == nil {
		return model.SlotRecord{}, ErrNotFound
	}
	return rec.Clone(), nil
}

// Create starts a new lease of days days on resource id for owner.
func Create(id, owner string, days int, now time.Time, existing *model.SlotRecord) (Transition, error) {
	if existing != nil {
		return Transition{}, fmt.Errorf("slot %s already exists: %w", id, ErrInvalidPrecondition)
	}
	if id == "" || owner == "" {
		return Transition{}, fmt.Errorf("slot id and owner are required: %w", ErrInvalidPrecondition)
	}
	if days <= 0 {
		return Transition{}, fmt.Errorf("duration must be at least one day, got %d: %w", days, ErrInvalidPrecondition)
	}

	rec := model.SlotRecord{
		ID:        id,
		Owner:     owner,
		ExpiresAt: now.UTC().Add(time.Duration(days) * Day),
	}
	return kept(rec,
		model.Action{Kind: model.ActionGrantRole, ResourceID: id, UserID: owner},
		notify(rec, model.Notice{Kind: model.MessageCreated}),
	), nil
}

// Extend pushes the expiry of rec out by days and re-arms the expiry warning.
func Extend(rec *model.SlotRecord, days int, now time.Time) (Transition, error) {
	r, err := mustExist(rec)
	if err != nil {
		return Transition{}, err
	}
	if days <= 0 {
		return Transition{}, fmt.Errorf("extension must be at least one day, got %d: %w", days, ErrInvalidPrecondition)
	}

	expires := r.ExpiresAt.Add(time.Duration(days) * Day)
	if !expires.After(now) {
		return Transition{}, fmt.Errorf("slot %s would still be expired at %s: %w", r.ID, expires.Format(time.RFC3339), ErrInvalidPrecondition)
	}
	r.ExpiresAt = expires
	r.Warned = false
	return kept(r, notify(r, model.Notice{Kind: model.MessageExtended})), nil
}

// Pause puts rec under review and restricts writes in its channel.
func Pause(rec *model.SlotRecord) (Transition, error) {
	r, err := mustExist(rec)
	if err != nil {
		return Transition{}, err
	}
	if r.Paused {
		return Transition{}, fmt.Errorf("slot %s is already paused: %w", r.ID, ErrInvalidPrecondition)
	}
	r.Paused = true
	return kept(r,
		model.Action{Kind: model.ActionRestrictWrites, ResourceID: r.ID, UserID: r.Owner},
		notify(r, model.Notice{Kind: model.MessagePaused}),
	), nil
}

// Resume lifts a pause set by Pause.
func Resume(rec *model.SlotRecord) (Transition, error) {
	r, err := mustExist(rec)
	if err != nil {
		return Transition{}, err
	}
	if !r.Paused {
		return Transition{}, fmt.Errorf("slot %s is not paused: %w", r.ID, ErrInvalidPrecondition)
	}
	r.Paused = false
	return kept(r,
		model.Action{Kind: model.ActionRestoreWrites, ResourceID: r.ID, UserID: r.Owner},
		notify(r, model.Notice{Kind: model.MessageResumed}),
	), nil
}

// Warn records one infraction against rec. The MaxWarnings-th warning deletes the slot.
func Warn(rec *model.SlotRecord, issuedBy string) (Transition, error) {
	r, err := mustExist(rec)
	if err != nil {
		return Transition{}, err
	}

	r.WarningCount++
	issued := notify(r, model.Notice{
		Kind:         model.MessageWarningIssued,
		WarningCount: r.WarningCount,
		IssuedBy:     issuedBy,
	})
	if r.WarningCount >= model.MaxWarnings {
		return deleted(r, issued, revokeRole(r), deleteResource(r)), nil
	}
	return kept(r, issued), nil
}

// Delete ends the lease on rec right away.
func Delete(rec *model.SlotRecord) (Transition, error) {
	r, err := mustExist(rec)
	if err != nil {
		return Transition{}, err
	}
	return deleted(r, revokeRole(r), deleteResource(r)), nil
}

// Broadcast spends the slot's daily mention allowance.
func Broadcast(rec *model.SlotRecord, audience string, now time.Time) (Transition, error) {
	r, err := mustExist(rec)
	if err != nil {
		return Transition{}, err
	}
	if audience != model.AudienceEveryone && audience != model.AudienceHere {
		return Transition{}, fmt.Errorf("unknown broadcast audience %q: %w", audience, ErrInvalidPrecondition)
	}
	if !Allow(r, now) {
		return Transition{}, fmt.Errorf("slot %s may broadcast again at %s: %w", r.ID, NextBroadcastAt(r).Format(time.RFC3339), ErrRateLimited)
	}

	at := now.UTC()
	r.LastBroadcastAt = &at
	return kept(r, notify(r, model.Notice{Kind: model.MessageBroadcast, Audience: audience})), nil
}

// SweepCheck applies the periodic expiry rules to rec. exists reports whether the
// slot's channel is still present; a missing channel ends the lease immediately.
// A zero Transition means nothing changed.
func SweepCheck(rec *model.SlotRecord, now time.Time, exists bool) (Transition, error) {
	r, err := mustExist(rec)
	if err != nil {
		return Transition{}, err
	}

	switch {
	case !exists:
		// the channel is already gone, only the role is left to clean up
		return deleted(r, revokeRole(r)), nil
	case !now.Before(r.ExpiresAt):
		return deleted(r,
			notify(r, model.Notice{Kind: model.MessageExpired}),
			revokeRole(r),
			deleteResource(r),
		), nil
	case r.Remaining(now) < WarningLead && !r.Warned:
		r.Warned = true
		return kept(r, notify(r, model.Notice{Kind: model.MessageExpiryWarning})), nil
	}
	return Transition{}, nil
}
