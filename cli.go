package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"slot-bot/bot"
	"slot-bot/config"
	"slot-bot/gateway"
	"slot-bot/handlers"
	"slot-bot/lease"
	"slot-bot/logger"
	"slot-bot/model"
	"slot-bot/utils"
	"slot-bot/utils/database"
)

type app struct {
	v   *viper.Viper
	cfg *model.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "slot-bot",
		Short:         "Discord bot that leases time-limited slot channels",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.v)
			if err != nil {
				return err
			}
			a.cfg = cfg
			logger.Setup(cfg)
			return nil
		},
		RunE: a.run,
	}

	flags := root.PersistentFlags()
	flags.String("store", model.StoreSQLite, "slot store driver (sqlite|json)")
	flags.String("db", "data/slots.db", "path of the sqlite database")
	flags.String("slots-file", "data/slots.json", "path of the JSON slots document")
	flags.String("log-level", "info", "log level (debug|info|warn|error)")
	flags.String("log-format", "text", "log format (text|json)")
	_ = a.v.BindPFlag(config.KeyStoreDriver, flags.Lookup("store"))
	_ = a.v.BindPFlag(config.KeyDatabasePath, flags.Lookup("db"))
	_ = a.v.BindPFlag(config.KeySlotsFile, flags.Lookup("slots-file"))
	_ = a.v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = a.v.BindPFlag(config.KeyLogFormat, flags.Lookup("log-format"))

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord, serve slot commands and sweep expired slots",
		Args:  cobra.NoArgs,
		RunE:  a.run,
	}
	runCmd.Flags().String("sweep-interval", "60m", "time between expiration sweeps, e.g. 30m or 1d")
	_ = a.v.BindPFlag(config.KeySweepInterval, runCmd.Flags().Lookup("sweep-interval"))

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print the stored slots, soonest expiry first",
		Args:  cobra.NoArgs,
		RunE:  a.list,
	}
	listCmd.Flags().String("expiring", "", "only show slots expiring within this duration, e.g. 12h or 2d")

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the stored slots with the contents of a slots.json document",
		Args:  cobra.NoArgs,
		RunE:  a.importSlots,
	}
	importCmd.Flags().String("from", "", "slots.json document to import")
	_ = importCmd.MarkFlagRequired("from")

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored slots to a slots.json document",
		Args:  cobra.NoArgs,
		RunE:  a.exportSlots,
	}
	exportCmd.Flags().String("to", "", "destination slots.json document")
	_ = exportCmd.MarkFlagRequired("to")

	root.AddCommand(runCmd, &cobra.Command{
		Use:   "sweep",
		Short: "Run a single expiration sweep against the guild and exit",
		Args:  cobra.NoArgs,
		RunE:  a.sweep,
	}, listCmd, importCmd, exportCmd)

	return root
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
}

func (a *app) run(cmd *cobra.Command, _ []string) error {
	if err := config.RequireDiscord(a.cfg); err != nil {
		return err
	}

	b, err := bot.New(a.cfg)
	if err != nil {
		return fmt.Errorf("error creating bot: %w", err)
	}
	handlers.Register(b)

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	runErr := b.Run(ctx)
	if err := b.Close(); err != nil {
		logger.LogError("Shutdown was not clean", err)
	}
	return runErr
}

func (a *app) sweep(cmd *cobra.Command, _ []string) error {
	if err := config.RequireDiscord(a.cfg); err != nil {
		return err
	}
	session, err := discordgo.New("Bot " + a.cfg.BotToken)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	store, closer, err := database.OpenChecked(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	svc := lease.NewService(store, gateway.NewDiscord(session, a.cfg))
	report, err := svc.Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d checked, %d warned, %d expired, %d orphaned, %d failures (%s)\n",
		report.RunID, report.Checked, report.Warned, report.Expired, report.Orphaned, report.Failures, report.Took.Round(time.Millisecond))
	return nil
}

func (a *app) list(cmd *cobra.Command, _ []string) error {
	store, closer, err := database.OpenStore(a.cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	// listing never touches Discord
	svc := lease.NewService(store, nil)

	var within time.Duration
	if raw, _ := cmd.Flags().GetString("expiring"); raw != "" {
		if within, err = utils.ParseDuration(raw); err != nil {
			return fmt.Errorf("invalid --expiring value: %w", err)
		}
	}

	var slots []model.SlotRecord
	if within > 0 {
		slots, err = svc.ExpiringWithin(cmd.Context(), within)
	} else {
		slots, err = svc.List(cmd.Context())
	}
	if err != nil {
		return err
	}
	return printSlots(cmd.OutOrStdout(), slots)
}

func printSlots(w io.Writer, slots []model.SlotRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tOWNER\tEXPIRES\tWARNINGS\tPAUSED\tWARNED")
	for _, rec := range slots {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%t\t%t\n",
			rec.ID, rec.Owner, rec.ExpiresAt.UTC().Format("2006-01-02 15:04:05"), rec.WarningCount, model.MaxWarnings, rec.Paused, rec.Warned)
	}
	return tw.Flush()
}

func (a *app) importSlots(cmd *cobra.Command, _ []string) error {
	from, _ := cmd.Flags().GetString("from")

	store, closer, err := database.OpenStore(a.cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	src := database.NewSlotFile(from)
	n, err := database.Copy(cmd.Context(), store, src)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d slots from %s\n", n, src.Path())
	return nil
}

func (a *app) exportSlots(cmd *cobra.Command, _ []string) error {
	to, _ := cmd.Flags().GetString("to")

	store, closer, err := database.OpenStore(a.cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	dst := database.NewSlotFile(to)
	n, err := database.Copy(cmd.Context(), dst, store)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d slots to %s\n", n, dst.Path())
	return nil
}
