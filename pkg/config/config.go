// Package config provides configuration loading and validation utilities.
package config

import (
	"fmt"
	"time"

	"github.com/Proton-105/mlbb-topup-bot/pkg/redis"
)

// Config holds runtime configuration for the top-up bot.
type Config struct {
	AppEnv    string          `mapstructure:"app_env"`
	Bot       BotConfig       `mapstructure:"bot"`
	Shop      ShopConfig      `mapstructure:"shop"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     redis.Config    `mapstructure:"redis"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Server    ServerConfig    `mapstructure:"server"`
}

type BotConfig struct {
	Token         string        `mapstructure:"token" validate:"required"`
	Mode          string        `mapstructure:"mode" validate:"oneof=polling webhook"`
	Timeout       time.Duration `mapstructure:"timeout"`
	WebhookListen string        `mapstructure:"webhook_listen" validate:"required_if=Mode webhook"`
	WebhookURL    string        `mapstructure:"webhook_url" validate:"required_if=Mode webhook"`
	OwnerID       int64         `mapstructure:"owner_id" validate:"gt=0"`
	// OpsChannelID is the group chat that receives order and top-up alerts. Zero disables it.
	OpsChannelID int64 `mapstructure:"ops_channel_id"`
}

type ShopConfig struct {
	Currency           string        `mapstructure:"currency" validate:"required"`
	MinTopUp           int64         `mapstructure:"min_topup" validate:"gt=0"`
	WeeklyPassBase     int64         `mapstructure:"weekly_pass_base" validate:"gt=0"`
	BannedGameIDs      []string      `mapstructure:"banned_game_ids"`
	DraftTTL           time.Duration `mapstructure:"draft_ttl"`
	DraftSweepInterval time.Duration `mapstructure:"draft_sweep_interval"`
	HistoryPageSize    int           `mapstructure:"history_page_size" validate:"gt=0"`
	// Timezone is the IANA zone report periods are cut in.
	Timezone string `mapstructure:"timezone"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=postgres file memory"`
	// FilePath is the JSON snapshot used by the file driver and as the postgres fallback.
	FilePath     string `mapstructure:"file_path"`
	FallbackFile bool   `mapstructure:"fallback_file"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

type LoggerConfig struct {
	Level  string        `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string        `mapstructure:"format" validate:"oneof=json text"`
	File   LogFileConfig `mapstructure:"file"`
}

type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path" validate:"required_if=Enabled true"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// PerMinute is the default number of updates a user may send per minute.
	PerMinute int `mapstructure:"per_minute" validate:"gte=0"`
	// Commands overrides the limit per minute for individual commands.
	Commands  map[string]int `mapstructure:"commands"`
	Whitelist []int64        `mapstructure:"whitelist"`
}

type JobsConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Concurrency int  `mapstructure:"concurrency" validate:"gte=0"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}
