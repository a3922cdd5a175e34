package bot

import (
	"context"
	"fmt"
	"time"

	"slot-bot/logger"
	"slot-bot/utils"
)

const readyTimeout = 30 * time.Second

// Run connects to Discord, waits until commands are registered and then runs
// the sweep scheduler until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}

	select {
	case err := <-b.ready:
		if err != nil {
			b.Session.Close()
			return err
		}
	case <-time.After(readyTimeout):
		b.Session.Close()
		return fmt.Errorf("no ready event within %s", readyTimeout)
	case <-ctx.Done():
		b.Session.Close()
		return ctx.Err()
	}

	b.scheduler.Start()

	logger.LogSystem("Bot is now running", "sweep_interval", b.GetConfig().SweepInterval)
	_ = utils.LogInfo(b.Session, b.GetConfig().LogChannelID, "System", "Startup", "Bot has started successfully.")

	<-ctx.Done()
	return nil
}
