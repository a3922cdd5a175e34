package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"slot-bot/model"
	"slot-bot/utils"
)

// Keys read from the environment, the optional config file and command flags.
const (
	KeyBotToken                 = "bot_token"
	KeyGuildID                  = "guild_id"
	KeyCategoryID               = "category_id"
	KeySlotRoleID               = "slot_role_id"
	KeyLogChannelID             = "log_channel_id"
	KeyAdminRoleIDs             = "admin_role_ids"
	KeyDeveloperUserIDs         = "developer_user_ids"
	KeyStoreDriver              = "store_driver"
	KeyDatabasePath             = "database_path"
	KeySlotsFile                = "slots_file"
	KeySweepInterval            = "sweep_interval"
	KeyLogLevel                 = "log_level"
	KeyLogFormat                = "log_format"
	KeyDisableCommandUnregister = "disable_command_unregister"
)

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyStoreDriver, model.StoreSQLite)
	v.SetDefault(KeyDatabasePath, "data/slots.db")
	v.SetDefault(KeySlotsFile, "data/slots.json")
	v.SetDefault(KeySweepInterval, "60m")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyDisableCommandUnregister, false)

	v.SetConfigName("slotbot")
	v.AddConfigPath("./data")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load loads the configuration from .env, the environment and the optional
// data/slotbot.{yaml,toml,json} file into a model.Config.
func Load(v *viper.Viper) (*model.Config, error) {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		slog.Info(".env file not found, relying on environment variables")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	level, err := parseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return nil, err
	}

	interval, err := utils.ParseDuration(v.GetString(KeySweepInterval))
	if err != nil {
		return nil, fmt.Errorf("invalid sweep interval: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %s", interval)
	}

	cfg := &model.Config{
		BotToken:                 v.GetString(KeyBotToken),
		GuildID:                  v.GetString(KeyGuildID),
		CategoryID:               v.GetString(KeyCategoryID),
		SlotRoleID:               v.GetString(KeySlotRoleID),
		LogChannelID:             v.GetString(KeyLogChannelID),
		AdminRoleIDs:             splitIDs(v.GetString(KeyAdminRoleIDs)),
		DeveloperUserIDs:         splitIDs(v.GetString(KeyDeveloperUserIDs)),
		StoreDriver:              strings.ToLower(v.GetString(KeyStoreDriver)),
		DatabasePath:             v.GetString(KeyDatabasePath),
		SlotsFile:                v.GetString(KeySlotsFile),
		SweepInterval:            interval,
		LogLevel:                 level,
		LogFormat:                strings.ToLower(v.GetString(KeyLogFormat)),
		DisableCommandUnregister: v.GetBool(KeyDisableCommandUnregister),
	}

	switch cfg.StoreDriver {
	case model.StoreSQLite, model.StoreJSON:
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	if cfg.LogChannelID == "" {
		slog.Warn("LOG_CHANNEL_ID not set, audit logging to Discord will be disabled")
	}

	return cfg, nil
}

// RequireDiscord checks the settings needed to talk to the guild.
func RequireDiscord(cfg *model.Config) error {
	var missing []string
	if cfg.BotToken == "" {
		missing = append(missing, "BOT_TOKEN")
	}
	if cfg.GuildID == "" {
		missing = append(missing, "GUILD_ID")
	}
	if cfg.CategoryID == "" {
		missing = append(missing, "CATEGORY_ID")
	}
	if cfg.SlotRoleID == "" {
		missing = append(missing, "SLOT_ROLE_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
