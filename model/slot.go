package model

import "time"

// MaxWarnings is the warning count at which a slot is deleted automatically.
const MaxWarnings = 3

// SlotRecord is one leased slot: a channel and the slot role granted to its owner.
type SlotRecord struct {
	ID              string     `json:"id"`
	Owner           string     `json:"owner"`
	ExpiresAt       time.Time  `json:"expires_at"`
	Warned          bool       `json:"warned"`
	WarningCount    int        `json:"warnings"`
	Paused          bool       `json:"paused"`
	LastBroadcastAt *time.Time `json:"last_used"`
}

// Clone returns a deep copy so that transitions never alias the caller's record.
func (r SlotRecord) Clone() SlotRecord {
	if r.LastBroadcastAt != nil {
		t := *r.LastBroadcastAt
		r.LastBroadcastAt = &t
	}
	return r
}

// Remaining returns the time left until expiry, which is negative once expired.
func (r SlotRecord) Remaining(now time.Time) time.Duration {
	return r.ExpiresAt.Sub(now)
}

// Slots is the whole persisted collection keyed by slot ID.
type Slots map[string]SlotRecord

// Clone copies the collection and every record in it.
func (s Slots) Clone() Slots {
	out := make(Slots, len(s))
	for id, rec := range s {
		out[id] = rec.Clone()
	}
	return out
}
