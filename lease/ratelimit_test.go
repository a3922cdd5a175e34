package lease

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"slot-bot/model"
)

func TestAllow(t *testing.T) {
	rec := model.SlotRecord{ID: "100", Owner: "U1"}
	assert.True(t, Allow(rec, t0))
	assert.True(t, NextBroadcastAt(rec).IsZero())

	last := t0
	rec.LastBroadcastAt = &last

	assert.False(t, Allow(rec, t0))
	assert.False(t, Allow(rec, t0.Add(86399*time.Second)))
	assert.True(t, Allow(rec, t0.Add(86400*time.Second)))
	assert.True(t, Allow(rec, t0.Add(25*time.Hour)))
	assert.Equal(t, t0.Add(24*time.Hour), NextBroadcastAt(rec))
}
