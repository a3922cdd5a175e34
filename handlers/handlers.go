package handlers

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"slot-bot/bot"
	"slot-bot/logger"
	"slot-bot/utils"
)

type commandFunc func(s *discordgo.Session, i *discordgo.InteractionCreate)

// Register installs the slash command handlers on the bot session.
func Register(b *bot.Bot) {
	b.CommandHandlers = commandHandlers(b)
	addHandlers(b)
}

func commandHandlers(b *bot.Bot) map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	h := &slotHandlers{bot: b, pending: utils.NewKeyLock(commandTimeout)}
	return map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate){
		"addslot":    adminOnly(b, h.addSlot),
		"eslot":      adminOnly(b, h.extendSlot),
		"pslot":      adminOnly(b, h.pauseSlot),
		"unpslot":    adminOnly(b, h.resumeSlot),
		"wslot":      adminOnly(b, h.warnSlot),
		"rslot":      adminOnly(b, h.removeSlot),
		"dslot":      adminOnly(b, h.slotDetails),
		"send_alert": adminOnly(b, h.sendAlert),
		"aslot":      adminOnly(b, h.scamAlert),
		"slotsys": adminOnly(b, func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			SystemInfoHandler(s, i, b)
		}),
		"help": HelpHandler,
	}
}

func adminOnly(b *bot.Bot, next commandFunc) commandFunc {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		cfg := b.GetConfig()
		permissionLevel := utils.CheckPermission(i.Member, cfg.AdminRoleIDs, cfg.DeveloperUserIDs)
		if !utils.IsAdmin(permissionLevel) {
			utils.Respond(s, i, utils.ErrorReply("Only server administrators can use this command."))
			return
		}
		next(s, i)
	}
}

func addHandlers(b *bot.Bot) {
	b.Session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}
		name := i.ApplicationCommandData().Name
		h, ok := b.CommandHandlers[name]
		if !ok {
			return
		}

		start := time.Now()
		h(s, i)
		logger.LogCommand(name, invoker(i), time.Since(start), nil)
	})
}

func invoker(i *discordgo.InteractionCreate) string {
	switch {
	case i.Member != nil && i.Member.User != nil:
		return i.Member.User.ID
	case i.User != nil:
		return i.User.ID
	default:
		return ""
	}
}
