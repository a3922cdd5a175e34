package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"slot-bot/bot"
	"slot-bot/gateway"
	"slot-bot/lease"
	"slot-bot/logger"
	"slot-bot/model"
	"slot-bot/utils"
)

const commandTimeout = 30 * time.Second

type slotHandlers struct {
	bot     *bot.Bot
	pending *utils.KeyLock // owners with a slot being created
}

type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionMap(i *discordgo.InteractionCreate) options {
	opts := make(options)
	for _, opt := range i.ApplicationCommandData().Options {
		opts[opt.Name] = opt
	}
	return opts
}

func (o options) channelID() string {
	if opt, ok := o["channel"]; ok {
		return opt.ChannelValue(nil).ID
	}
	return ""
}

func (o options) days() int {
	if opt, ok := o["days"]; ok {
		return int(opt.IntValue())
	}
	return 0
}

// channelName prefers the resolved name so messages stay readable after the
// channel is deleted.
func channelName(i *discordgo.InteractionCreate, id string) string {
	data := i.ApplicationCommandData()
	if data.Resolved != nil {
		if ch, ok := data.Resolved.Channels[id]; ok && ch.Name != "" {
			return ch.Name
		}
	}
	return id
}

func discordTime(t time.Time) string {
	return fmt.Sprintf("<t:%d:f>", t.Unix())
}

// failureMessage turns a service error into the text shown to the admin.
func failureMessage(err error) string {
	switch lease.Reason(err) {
	case lease.ReasonNotFound:
		return "This channel is not a slot."
	case lease.ReasonInvalidPrecondition:
		msg := strings.TrimSuffix(err.Error(), ": "+lease.ErrInvalidPrecondition.Error())
		return "Not possible: " + msg + "."
	case lease.ReasonRateLimited:
		return "@everyone and @here can be used at most once every 24 hours."
	case lease.ReasonPersistence:
		return "Slot storage is unavailable, nothing was changed."
	case lease.ReasonPermissionDenied:
		return "The bot is missing Discord permissions for this action."
	case lease.ReasonGateway:
		return "Discord rejected the request."
	default:
		return "Something went wrong."
	}
}

// committed reports whether the slot change was stored even though err is set.
func committed(res lease.Result, err error) bool {
	return err != nil && errors.Is(err, lease.ErrGateway) && res.Record.ID != ""
}

type mutation func(ctx context.Context) (lease.Result, error)

// mutate defers the reply, runs do and reports the outcome to the admin and to
// the log channel.
func (h *slotHandlers) mutate(s *discordgo.Session, i *discordgo.InteractionCreate, op string, do mutation, success func(lease.Result) string) {
	if err := utils.Defer(s, i, true); err != nil {
		logger.LogError("Failed to defer response", err, "command", op)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cfg := h.bot.GetConfig()
	res, err := do(ctx)
	switch {
	case err == nil:
		msg := success(res)
		utils.EditReply(s, i.Interaction, utils.Reply{Content: msg})
		_ = utils.LogInfo(s, cfg.LogChannelID, "Slots", op, fmt.Sprintf("%s by <@%s>", msg, invoker(i)))
	case committed(res, err):
		msg := success(res) + "\n⚠️ " + failureMessage(err)
		utils.EditReply(s, i.Interaction, utils.Reply{Content: msg})
		logger.LogError("Slot updated but Discord actions failed", err, "command", op, "slot", res.Record.ID)
		_ = utils.LogWarn(s, cfg.LogChannelID, "Slots", op, fmt.Sprintf("%s\n%v", msg, err))
	default:
		utils.EditReply(s, i.Interaction, utils.ErrorReply(failureMessage(err)))
		logger.LogError("Slot command failed", err, "command", op, "reason", lease.Reason(err))
		if errors.Is(err, lease.ErrPersistence) {
			_ = utils.LogError(s, cfg.LogChannelID, "Slots", op, err.Error())
		}
	}
}

func (h *slotHandlers) addSlot(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i)
	owner := opts["user"].UserValue(nil).ID
	days := opts.days()

	if !h.pending.TryLock(owner) {
		utils.Respond(s, i, utils.ErrorReply("A slot for this user is already being created."))
		return
	}
	defer h.pending.Unlock(owner)

	h.mutate(s, i, "addslot", func(ctx context.Context) (lease.Result, error) {
		return h.bot.Service.Create(ctx, owner, days)
	}, func(res lease.Result) string {
		return fmt.Sprintf("✅ Slot <#%s> was created for <@%s> and expires %s. The slot role was granted.",
			res.Record.ID, owner, discordTime(res.Record.ExpiresAt))
	})
}

func (h *slotHandlers) extendSlot(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i)
	id, days := opts.channelID(), opts.days()

	h.mutate(s, i, "eslot", func(ctx context.Context) (lease.Result, error) {
		return h.bot.Service.Extend(ctx, id, days)
	}, func(res lease.Result) string {
		return fmt.Sprintf("✅ Slot <#%s> was extended by %d days and now expires %s.", id, days, discordTime(res.Record.ExpiresAt))
	})
}

func (h *slotHandlers) pauseSlot(s *discordgo.Session, i *discordgo.InteractionCreate) {
	id := optionMap(i).channelID()
	h.mutate(s, i, "pslot", func(ctx context.Context) (lease.Result, error) {
		return h.bot.Service.Pause(ctx, id)
	}, func(lease.Result) string {
		return fmt.Sprintf("⏸️ Slot <#%s> is paused pending review.", id)
	})
}

func (h *slotHandlers) resumeSlot(s *discordgo.Session, i *discordgo.InteractionCreate) {
	id := optionMap(i).channelID()
	h.mutate(s, i, "unpslot", func(ctx context.Context) (lease.Result, error) {
		return h.bot.Service.Resume(ctx, id)
	}, func(lease.Result) string {
		return fmt.Sprintf("▶️ Slot <#%s> is active again.", id)
	})
}

func (h *slotHandlers) warnSlot(s *discordgo.Session, i *discordgo.InteractionCreate) {
	id := optionMap(i).channelID()
	name := channelName(i, id)
	h.mutate(s, i, "wslot", func(ctx context.Context) (lease.Result, error) {
		return h.bot.Service.Warn(ctx, id, invoker(i))
	}, func(res lease.Result) string {
		if res.Deleted {
			return fmt.Sprintf("🚫 Slot **%s** reached %d warnings and was deleted.", name, model.MaxWarnings)
		}
		return fmt.Sprintf("⚠️ Warning %d/%d issued in <#%s>.", res.Record.WarningCount, model.MaxWarnings, id)
	})
}

func (h *slotHandlers) removeSlot(s *discordgo.Session, i *discordgo.InteractionCreate) {
	id := optionMap(i).channelID()
	name := channelName(i, id)
	h.mutate(s, i, "rslot", func(ctx context.Context) (lease.Result, error) {
		return h.bot.Service.Delete(ctx, id)
	}, func(lease.Result) string {
		return fmt.Sprintf("🗑️ Slot **%s** was deleted.", name)
	})
}

func (h *slotHandlers) sendAlert(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i)
	id := opts.channelID()
	audience := opts["alert_type"].StringValue()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	_, err := h.bot.Service.Broadcast(ctx, id, audience)
	if errors.Is(err, lease.ErrRateLimited) {
		msg := failureMessage(err)
		if rec, derr := h.bot.Service.Details(ctx, id); derr == nil {
			msg += fmt.Sprintf(" Next alert available <t:%d:R>.", lease.NextBroadcastAt(rec).Unix())
		}
		utils.Respond(s, i, utils.ErrorReply(msg))
		return
	}
	if err != nil {
		utils.Respond(s, i, utils.ErrorReply(failureMessage(err)))
		logger.LogError("Slot command failed", err, "command", "send_alert", "reason", lease.Reason(err))
		return
	}

	msg := fmt.Sprintf("✅ The @%s alert was sent in **%s**.", audience, channelName(i, id))
	utils.Respond(s, i, utils.Reply{Content: msg})
	_ = utils.LogInfo(s, h.bot.GetConfig().LogChannelID, "Slots", "send_alert", fmt.Sprintf("%s by <@%s>", msg, invoker(i)))
}

func (h *slotHandlers) scamAlert(s *discordgo.Session, i *discordgo.InteractionCreate) {
	id := optionMap(i).channelID()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := h.bot.Service.Alert(ctx, id, invoker(i)); err != nil {
		utils.Respond(s, i, utils.ErrorReply(failureMessage(err)))
		logger.LogError("Slot command failed", err, "command", "aslot", "reason", lease.Reason(err))
		return
	}
	utils.Respond(s, i, utils.Reply{
		Content:   fmt.Sprintf("✅ The warning message was sent in **%s**.", channelName(i, id)),
		Ephemeral: true,
	})
}

func (h *slotHandlers) slotDetails(s *discordgo.Session, i *discordgo.InteractionCreate) {
	id := optionMap(i).channelID()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	rec, err := h.bot.Service.Details(ctx, id)
	if err != nil {
		utils.Respond(s, i, utils.ErrorReply(failureMessage(err)))
		return
	}
	utils.Respond(s, i, utils.Reply{Embed: gateway.DetailsEmbed(channelName(i, id), rec, lease.NextBroadcastAt(rec)), Ephemeral: true})
}
