package model

import (
	"log/slog"
	"time"
)

// Store drivers.
const (
	StoreSQLite = "sqlite"
	StoreJSON   = "json"
)

// Config stores the application configuration.
type Config struct {
	BotToken     string
	GuildID      string
	CategoryID   string
	SlotRoleID   string
	LogChannelID string

	AdminRoleIDs     []string
	DeveloperUserIDs []string

	StoreDriver  string
	DatabasePath string
	SlotsFile    string

	SweepInterval time.Duration

	LogLevel  slog.Level
	LogFormat string

	DisableCommandUnregister bool
}
