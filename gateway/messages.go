package gateway

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"slot-bot/model"
)

const (
	colorInfo   = 0x3498DB
	colorDanger = 0xE74C3C
	colorAlert  = 0xF1C40F
)

const timeLayout = "2006-01-02 15:04:05"

func stamp(t time.Time) string {
	return fmt.Sprintf("%s UTC (<t:%d:R>)", t.UTC().Format(timeLayout), t.Unix())
}

// Render builds the message delivered for n.
func Render(n model.Notice) *discordgo.MessageSend {
	switch n.Kind {
	case model.MessageCreated:
		return &discordgo.MessageSend{
			Content: fmt.Sprintf("✅ This slot belongs to <@%s> and expires on %s.", n.OwnerID, stamp(n.ExpiresAt)),
		}
	case model.MessageExtended:
		return &discordgo.MessageSend{
			Content: fmt.Sprintf("⏳ This slot was extended and now expires on %s.", stamp(n.ExpiresAt)),
		}
	case model.MessageExpiryWarning:
		return &discordgo.MessageSend{
			Content: fmt.Sprintf("⚠️ <@%s>, this slot expires in less than 24 hours (%s).", n.OwnerID, stamp(n.ExpiresAt)),
		}
	case model.MessageExpired:
		return &discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{{
				Title:       "⌛ Your slot has expired",
				Description: fmt.Sprintf("Your slot expired on %s. The channel and the slot role have been removed.", stamp(n.ExpiresAt)),
				Color:       colorDanger,
			}},
		}
	case model.MessagePaused:
		return &discordgo.MessageSend{
			Content: "⚠️ This slot is suspected of scamming and is under review. Writing is disabled until the review ends.",
		}
	case model.MessageResumed:
		return &discordgo.MessageSend{
			Content: "✅ The review is over, this slot is active again.",
		}
	case model.MessageWarningIssued:
		content := fmt.Sprintf("⚠️ <@%s> issued a warning to this slot. Total warnings: **%d/%d**.", n.IssuedBy, n.WarningCount, model.MaxWarnings)
		if n.WarningCount >= model.MaxWarnings {
			content += "\n❌ This slot is being deleted automatically after reaching the warning limit."
		}
		return &discordgo.MessageSend{Content: content}
	case model.MessageBroadcast:
		return &discordgo.MessageSend{
			Content: fmt.Sprintf("@%s This is an important alert!", n.Audience),
			AllowedMentions: &discordgo.MessageAllowedMentions{
				Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeEveryone},
			},
		}
	case model.MessageScamAlert:
		return &discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{{
				Title: "⚠️ Beware of scams!",
				Description: "To avoid any trouble, **use a middleman** when trading.\n\n" +
					"If you need a middleman, **open a ticket**, it is completely **FREE**! 🎟️",
				Color:  colorAlert,
				Footer: &discordgo.MessageEmbedFooter{Text: "Your safety is our priority! 🔒"},
			}},
		}
	default:
		return &discordgo.MessageSend{Content: string(n.Kind)}
	}
}

// DetailsEmbed describes a slot for the details command.
func DetailsEmbed(channelName string, rec model.SlotRecord, nextBroadcast time.Time) *discordgo.MessageEmbed {
	paused := "❌ No"
	if rec.Paused {
		paused = "✅ Yes"
	}
	broadcast := "available now"
	if !nextBroadcast.IsZero() && nextBroadcast.After(time.Now()) {
		broadcast = stamp(nextBroadcast)
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("🎮 Slot details for %s", channelName),
		Description: fmt.Sprintf("⏳ **Active until**: %s", stamp(rec.ExpiresAt)),
		Color:       colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "👤 Owner", Value: fmt.Sprintf("<@%s>", rec.Owner), Inline: true},
			{Name: "🛑 Paused?", Value: paused, Inline: true},
			{Name: "⚠️ Warnings", Value: fmt.Sprintf("%d/%d", rec.WarningCount, model.MaxWarnings), Inline: true},
			{Name: "📣 Next @everyone/@here", Value: broadcast, Inline: false},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "🔒 Safety is our priority!"},
	}
}
