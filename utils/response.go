package utils

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// Reply is what a command answers with: text, an embed, or both.
type Reply struct {
	Content   string
	Embed     *discordgo.MessageEmbed
	Ephemeral bool
	Failed    bool
}

// ErrorReply is an ephemeral failure notice only the invoker sees.
func ErrorReply(message string) Reply {
	return Reply{Content: message, Ephemeral: true, Failed: true}
}

func (r Reply) text() string {
	if r.Failed {
		return "❌ " + r.Content
	}
	return r.Content
}

func (r Reply) embeds() []*discordgo.MessageEmbed {
	if r.Embed == nil {
		return nil
	}
	return []*discordgo.MessageEmbed{r.Embed}
}

func (r Reply) responseData() *discordgo.InteractionResponseData {
	data := &discordgo.InteractionResponseData{
		Content: r.text(),
		Embeds:  r.embeds(),
	}
	if r.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return data
}

// webhookEdit replaces a deferred response. Visibility was fixed when it was deferred.
func (r Reply) webhookEdit() *discordgo.WebhookEdit {
	content := r.text()
	embeds := r.embeds()
	return &discordgo.WebhookEdit{Content: &content, Embeds: &embeds}
}

// Respond answers an interaction right away.
func Respond(s *discordgo.Session, i *discordgo.InteractionCreate, r Reply) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: r.responseData(),
	})
	if err != nil {
		slog.Error("Error sending interaction response", slog.Any("error", err), slog.Bool("failed", r.Failed))
	}
}

// Defer acknowledges an interaction whose answer comes later through EditReply.
func Defer(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) error {
	response := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}
	if ephemeral {
		response.Data = &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral}
	}
	return s.InteractionRespond(i.Interaction, response)
}

// EditReply fills in a deferred response.
func EditReply(s *discordgo.Session, i *discordgo.Interaction, r Reply) {
	if _, err := s.InteractionResponseEdit(i, r.webhookEdit()); err != nil {
		slog.Error("Error editing deferred response", slog.Any("error", err), slog.Bool("failed", r.Failed))
	}
}
