package commands

import (
	"github.com/bwmarrin/discordgo"

	"slot-bot/commands/defs"
)

// GenerateCommands returns every slash command the bot registers in its guild.
func GenerateCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		defs.AddSlot,
		defs.ExtendSlot,
		defs.PauseSlot,
		defs.ResumeSlot,
		defs.WarnSlot,
		defs.RemoveSlot,
		defs.SlotDetails,
		defs.SendAlert,
		defs.ScamAlert,
		defs.Help,
		defs.SystemInfo,
	}
}
