package utils

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyResponseData(t *testing.T) {
	failed := ErrorReply("This channel is not a slot.").responseData()
	assert.Equal(t, "❌ This channel is not a slot.", failed.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, failed.Flags)
	assert.Empty(t, failed.Embeds)

	embed := &discordgo.MessageEmbed{Title: "Available commands"}
	public := Reply{Embed: embed}.responseData()
	assert.Empty(t, public.Content)
	assert.Zero(t, public.Flags)
	require.Len(t, public.Embeds, 1)
	assert.Same(t, embed, public.Embeds[0])
}

func TestReplyWebhookEdit(t *testing.T) {
	edit := Reply{Content: "✅ done"}.webhookEdit()
	require.NotNil(t, edit.Content)
	assert.Equal(t, "✅ done", *edit.Content)
	require.NotNil(t, edit.Embeds)
	assert.Empty(t, *edit.Embeds)

	edit = ErrorReply("Discord rejected the request.").webhookEdit()
	assert.Equal(t, "❌ Discord rejected the request.", *edit.Content)
}
