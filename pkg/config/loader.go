package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var defaults = map[string]any{
	"bot.token":          "",
	"bot.mode":           "polling",
	"bot.timeout":        10 * time.Second,
	"bot.webhook_listen": "",
	"bot.webhook_url":    "",
	"bot.owner_id":       0,
	"bot.ops_channel_id": 0,

	"shop.currency":             "MMK",
	"shop.min_topup":            1000,
	"shop.weekly_pass_base":     6000,
	"shop.banned_game_ids":      []string{"123456789", "000000000", "111111111"},
	"shop.draft_ttl":            30 * time.Minute,
	"shop.draft_sweep_interval": time.Minute,
	"shop.history_page_size":    5,
	"shop.timezone":             "Asia/Yangon",

	"storage.driver":        "postgres",
	"storage.file_path":     "data/shop.json",
	"storage.fallback_file": true,

	"database.host":              "localhost",
	"database.port":              5432,
	"database.user":              "postgres",
	"database.password":          "",
	"database.name":              "topup",
	"database.sslmode":           "disable",
	"database.max_open_conns":    10,
	"database.max_idle_conns":    5,
	"database.conn_max_lifetime": 30 * time.Minute,

	"redis.enabled":           false,
	"redis.addr":              "localhost:6379",
	"redis.password":          "",
	"redis.db":                0,
	"redis.pool_size":         10,
	"redis.min_idle_conns":    2,
	"redis.pool_timeout":      4 * time.Second,
	"redis.idle_timeout":      5 * time.Minute,
	"redis.max_retries":       3,
	"redis.min_retry_backoff": 8 * time.Millisecond,
	"redis.max_retry_backoff": 512 * time.Millisecond,

	"logger.level":             "info",
	"logger.format":            "json",
	"logger.file.enabled":      false,
	"logger.file.path":         "logs/bot.log",
	"logger.file.max_size_mb":  50,
	"logger.file.max_backups":  5,
	"logger.file.max_age_days": 14,
	"logger.file.compress":     true,

	"sentry.enabled":     false,
	"sentry.dsn":         "",
	"sentry.environment": "",
	"sentry.sample_rate": 1.0,

	"rate_limit.enabled":    true,
	"rate_limit.per_minute": 30,
	"rate_limit.commands":   map[string]int{"mmb": 10, "topup": 5},
	"rate_limit.whitelist":  []int64{},

	"jobs.enabled":     false,
	"jobs.concurrency": 5,

	"server.port":             8080,
	"server.shutdown_timeout": 10 * time.Second,
}

// Load reads configuration from .env files, an optional YAML file and
// environment variables, validates it, and returns the resulting Config.
func Load() (*Config, *viper.Viper, error) {
	// .env files are optional
	_ = godotenv.Load(".env.local", ".env")

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = fmt.Sprintf("./configs/%s.yaml", env)
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	cfg.AppEnv = env

	return cfg, v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Watch reloads the log level whenever the config file changes. Other settings
// need a restart. It is a no-op when no config file was read.
func Watch(v *viper.Viper, level *slog.LevelVar, log *slog.Logger) {
	if v == nil || v.ConfigFileUsed() == "" || level == nil {
		return
	}

	if log == nil {
		log = slog.Default()
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		next := ParseLevel(v.GetString("logger.level"))
		if next == level.Level() {
			return
		}

		level.Set(next)
		log.Info("log level reloaded", slog.String("level", next.String()), slog.String("file", e.Name))
	})
	v.WatchConfig()
}

// ParseLevel maps a config level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
