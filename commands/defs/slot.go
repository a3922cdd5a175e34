package defs

import "github.com/bwmarrin/discordgo"

var adminOnly int64 = discordgo.PermissionAdministrator

func slotChannelOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionChannel,
		Name:         "channel",
		Description:  "The slot channel",
		Required:     true,
		ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
	}
}

func daysOption(description string) *discordgo.ApplicationCommandOption {
	minDays := 1.0
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "days",
		Description: description,
		Required:    true,
		MinValue:    &minDays,
	}
}

var AddSlot = &discordgo.ApplicationCommand{
	Name:                     "addslot",
	Description:              "Create a new slot for a user",
	DefaultMemberPermissions: &adminOnly,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: "The slot owner",
			Required:    true,
		},
		daysOption("Lease length in days"),
	},
}

var ExtendSlot = &discordgo.ApplicationCommand{
	Name:                     "eslot",
	Description:              "Extend a slot",
	DefaultMemberPermissions: &adminOnly,
	Options: []*discordgo.ApplicationCommandOption{
		slotChannelOption(),
		daysOption("Days to add"),
	},
}

var PauseSlot = &discordgo.ApplicationCommand{
	Name:                     "pslot",
	Description:              "Pause a slot for review",
	DefaultMemberPermissions: &adminOnly,
	Options:                  []*discordgo.ApplicationCommandOption{slotChannelOption()},
}

var ResumeSlot = &discordgo.ApplicationCommand{
	Name:                     "unpslot",
	Description:              "Lift the pause on a slot",
	DefaultMemberPermissions: &adminOnly,
	Options:                  []*discordgo.ApplicationCommandOption{slotChannelOption()},
}

var WarnSlot = &discordgo.ApplicationCommand{
	Name:                     "wslot",
	Description:              "Warn a slot (the third warning deletes it)",
	DefaultMemberPermissions: &adminOnly,
	Options:                  []*discordgo.ApplicationCommandOption{slotChannelOption()},
}

var RemoveSlot = &discordgo.ApplicationCommand{
	Name:                     "rslot",
	Description:              "Delete a slot",
	DefaultMemberPermissions: &adminOnly,
	Options:                  []*discordgo.ApplicationCommandOption{slotChannelOption()},
}

var SlotDetails = &discordgo.ApplicationCommand{
	Name:                     "dslot",
	Description:              "Show the details of a slot",
	DefaultMemberPermissions: &adminOnly,
	Options:                  []*discordgo.ApplicationCommandOption{slotChannelOption()},
}

var SendAlert = &discordgo.ApplicationCommand{
	Name:                     "send_alert",
	Description:              "Send an @everyone or @here alert in a slot",
	DefaultMemberPermissions: &adminOnly,
	Options: []*discordgo.ApplicationCommandOption{
		slotChannelOption(),
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "alert_type",
			Description: "Who to mention",
			Required:    true,
			Choices: []*discordgo.ApplicationCommandOptionChoice{
				{Name: "@everyone", Value: "everyone"},
				{Name: "@here", Value: "here"},
			},
		},
	},
}

var ScamAlert = &discordgo.ApplicationCommand{
	Name:                     "aslot",
	Description:              "Post the anti-scam notice in a slot",
	DefaultMemberPermissions: &adminOnly,
	Options:                  []*discordgo.ApplicationCommandOption{slotChannelOption()},
}

var Help = &discordgo.ApplicationCommand{
	Name:        "help",
	Description: "List the available commands",
}

var SystemInfo = &discordgo.ApplicationCommand{
	Name:                     "slotsys",
	Description:              "Display bot and system status information",
	DefaultMemberPermissions: &adminOnly,
}
