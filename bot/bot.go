package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"slot-bot/commands"
	"slot-bot/gateway"
	"slot-bot/lease"
	"slot-bot/logger"
	"slot-bot/model"
	"slot-bot/utils"
	"slot-bot/utils/database"
)

// lookupConcurrency bounds the channel lookups a sweep sends to Discord at once.
const lookupConcurrency = 4

type Bot struct {
	Session            *discordgo.Session
	RegisteredCommands []*discordgo.ApplicationCommand
	CommandHandlers    map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate)
	Service            *lease.Service

	config    atomic.Value // *model.Config
	store     lease.Store
	closer    io.Closer
	scheduler *Scheduler
	ready     chan error
}

func (b *Bot) GetConfig() *model.Config {
	return b.config.Load().(*model.Config)
}

func (b *Bot) GetSession() *discordgo.Session {
	return b.Session
}

// StoreSize reports the on-disk size of the slot store.
func (b *Bot) StoreSize() (int64, error) {
	sized, ok := b.store.(interface{ Size() (int64, error) })
	if !ok {
		return 0, errors.New("store does not report its size")
	}
	return sized.Size()
}

func New(cfg *model.Config) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds

	store, closer, err := database.OpenChecked(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open slot store: %w", err)
	}

	b := &Bot{
		Session: dg,
		Service: lease.NewService(store, gateway.NewDiscord(dg, cfg), lease.WithLogger(slog.Default()), lease.WithLookupLimit(lookupConcurrency)),
		store:   store,
		closer:  closer,
		ready:   make(chan error, 1),
	}
	b.config.Store(cfg)
	b.scheduler = NewScheduler(b.Service, cfg.SweepInterval, b.reportSweep)

	dg.AddHandler(b.onReady)
	return b, nil
}

// onReady checks that the bot is in the configured guild and registers the
// slot commands there. The first outcome is handed to Run.
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	logger.LogSystem("Logged in", "user", r.User.Username, "guilds", len(r.Guilds))

	err := b.RefreshCommands()
	select {
	case b.ready <- err:
	default:
		// reconnect; Run has already returned from its wait
		if err != nil {
			logger.LogError("Failed to refresh commands after reconnect", err)
		}
	}
}

// RefreshCommands replaces the bot's commands in the configured guild.
func (b *Bot) RefreshCommands() error {
	cfg := b.GetConfig()
	appID := b.Session.State.User.ID

	if _, err := b.Session.Guild(cfg.GuildID); err != nil {
		return fmt.Errorf("bot is not a member of guild %s: %w", cfg.GuildID, err)
	}

	if !cfg.DisableCommandUnregister {
		logger.LogSystem("Unregistering global commands...")
		if _, err := b.Session.ApplicationCommandBulkOverwrite(appID, "", nil); err != nil {
			logger.LogError("Could not unregister global commands", err)
		}
	}

	cmds := commands.GenerateCommands()
	logger.LogSystem("Registering commands", "count", len(cmds), "guild", cfg.GuildID)
	registered, err := b.Session.ApplicationCommandBulkOverwrite(appID, cfg.GuildID, cmds)
	if err != nil {
		return fmt.Errorf("cannot update commands for guild %s: %w", cfg.GuildID, err)
	}
	b.RegisteredCommands = registered
	return nil
}

func (b *Bot) reportSweep(report lease.SweepReport) {
	if report.Expired == 0 && report.Orphaned == 0 && report.Failures == 0 {
		return
	}
	cfg := b.GetConfig()
	info := fmt.Sprintf("run %s: %d checked, %d warned, %d expired, %d orphaned, %d failures",
		report.RunID, report.Checked, report.Warned, report.Expired, report.Orphaned, report.Failures)
	if report.Failures > 0 {
		_ = utils.LogWarn(b.Session, cfg.LogChannelID, "Scheduler", "Sweep", info)
		return
	}
	_ = utils.LogInfo(b.Session, cfg.LogChannelID, "Scheduler", "Sweep", info)
}

// Close stops the scheduler, then the session, then the store.
func (b *Bot) Close() error {
	logger.LogSystem("Gracefully shutting down.")
	b.scheduler.Stop()

	var errs []error
	if err := b.Session.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close session: %w", err))
	}
	if err := b.closer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
