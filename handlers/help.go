package handlers

import (
	"github.com/bwmarrin/discordgo"

	"slot-bot/commands"
	"slot-bot/utils"
)

// HelpEmbed lists every registered command with its description.
func HelpEmbed() *discordgo.MessageEmbed {
	cmds := commands.GenerateCommands()
	fields := make([]*discordgo.MessageEmbedField, 0, len(cmds))
	for _, c := range cmds {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "/" + c.Name, Value: c.Description})
	}
	return &discordgo.MessageEmbed{
		Title:       "Available commands",
		Description: "Here is the list of commands you can use:",
		Color:       0x2ECC71,
		Fields:      fields,
	}
}

func HelpHandler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	utils.Respond(s, i, utils.Reply{Embed: HelpEmbed()})
}
