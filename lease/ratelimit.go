package lease

import (
	"time"

	"slot-bot/model"
)

// BroadcastWindow is the minimum gap between two broadcasts from the same slot.
const BroadcastWindow = 24 * time.Hour

// Allow reports whether rec may broadcast at now.
func Allow(rec model.SlotRecord, now time.Time) bool {
	if rec.LastBroadcastAt == nil {
		return true
	}
	return now.Sub(*rec.LastBroadcastAt) >= BroadcastWindow
}

// NextBroadcastAt returns the earliest time rec may broadcast again.
// The zero time means it may broadcast right away.
func NextBroadcastAt(rec model.SlotRecord) time.Time {
	if rec.LastBroadcastAt == nil {
		return time.Time{}
	}
	return rec.LastBroadcastAt.Add(BroadcastWindow)
}
