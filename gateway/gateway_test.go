package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slot-bot/lease"
	"slot-bot/model"
)

func restError(status int) error {
	return fmt.Errorf("request failed: %w", &discordgo.RESTError{
		Response: &http.Response{StatusCode: status, Status: http.StatusText(status)},
	})
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify(restError(http.StatusForbidden)), lease.ErrPermissionDenied)
	assert.NotErrorIs(t, classify(restError(http.StatusInternalServerError)), lease.ErrPermissionDenied)
	assert.NotErrorIs(t, classify(errors.New("boom")), lease.ErrPermissionDenied)

	assert.True(t, isNotFound(restError(http.StatusNotFound)))
	assert.False(t, isNotFound(restError(http.StatusForbidden)))
	assert.False(t, isNotFound(errors.New("boom")))
}

func TestRender(t *testing.T) {
	expires := time.Date(2025, 3, 19, 10, 0, 0, 0, time.UTC)

	warning := Render(model.Notice{Kind: model.MessageExpiryWarning, OwnerID: "7", ExpiresAt: expires})
	assert.Contains(t, warning.Content, "<@7>")
	assert.Contains(t, warning.Content, "2025-03-19 10:00:00 UTC")

	issued := Render(model.Notice{Kind: model.MessageWarningIssued, IssuedBy: "9", WarningCount: 2})
	assert.Contains(t, issued.Content, "2/3")
	assert.NotContains(t, issued.Content, "deleted")

	final := Render(model.Notice{Kind: model.MessageWarningIssued, IssuedBy: "9", WarningCount: 3})
	assert.Contains(t, final.Content, "deleted automatically")

	broadcast := Render(model.Notice{Kind: model.MessageBroadcast, Audience: model.AudienceHere})
	assert.True(t, strings.HasPrefix(broadcast.Content, "@here"))
	require.NotNil(t, broadcast.AllowedMentions)
	assert.Contains(t, broadcast.AllowedMentions.Parse, discordgo.AllowedMentionTypeEveryone)

	expired := Render(model.Notice{Kind: model.MessageExpired, ExpiresAt: expires})
	require.Len(t, expired.Embeds, 1)

	scam := Render(model.Notice{Kind: model.MessageScamAlert})
	require.Len(t, scam.Embeds, 1)
	assert.Contains(t, scam.Embeds[0].Description, "middleman")
}

func TestDetailsEmbed(t *testing.T) {
	rec := model.SlotRecord{ID: "1", Owner: "7", ExpiresAt: time.Now().Add(48 * time.Hour), WarningCount: 1, Paused: true}

	embed := DetailsEmbed("slot-7", rec, time.Time{})
	assert.Contains(t, embed.Title, "slot-7")
	require.Len(t, embed.Fields, 4)
	assert.Equal(t, "✅ Yes", embed.Fields[1].Value)
	assert.Equal(t, "1/3", embed.Fields[2].Value)
	assert.Equal(t, "available now", embed.Fields[3].Value)
}
