// Package config loads replybot settings from flags, environment and an optional file.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. REPLYBOT_TELEGRAM_TOKEN.
const EnvPrefix = "REPLYBOT"

type DB struct {
	Driver string
	DSN    string
}

type Telegram struct {
	Token       string
	BaseURL     string
	PollTimeout time.Duration
}

type Bot struct {
	MediaTimeout        time.Duration
	IgnoreOlderThan     time.Duration
	SendChance          int
	SimilarityThreshold float64
	SupergroupsOnly     bool
	Workers             int
}

type Cache struct {
	TagsTTL   time.Duration
	MediaTTL  time.Duration
	MediaSize int
	DataSize  int
	RedisAddr string
}

type Scheduler struct {
	SyncInterval time.Duration
}

type API struct {
	Addr string
}

type Log struct {
	Level  string
	Format string
}

// Config is the full replybot configuration
type Config struct {
	DB        DB
	Telegram  Telegram
	Bot       Bot
	Cache     Cache
	Scheduler Scheduler
	API       API
	Log       Log
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", filepath.Join("~", ".replybot", "replybot.db"))

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.base_url", "https://api.telegram.org")
	v.SetDefault("telegram.poll_timeout", 30*time.Second)

	v.SetDefault("bot.media_timeout", 30*time.Second)
	v.SetDefault("bot.ignore_older_than", 60*time.Second)
	v.SetDefault("bot.send_chance", 50)
	v.SetDefault("bot.similarity_threshold", 0.25)
	v.SetDefault("bot.supergroups_only", true)
	v.SetDefault("bot.workers", 8)

	v.SetDefault("cache.tags_ttl", time.Hour)
	v.SetDefault("cache.media_ttl", time.Hour)
	v.SetDefault("cache.media_size", 50)
	v.SetDefault("cache.data_size", 100)
	v.SetDefault("cache.redis_addr", "")

	v.SetDefault("scheduler.sync_interval", time.Hour)
	v.SetDefault("api.addr", "127.0.0.1:8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration file if one is set, then decodes every key.
func Load(v *viper.Viper) (*Config, error) {
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	dsn, err := expandHome(v.GetString("db.dsn"))
	if err != nil {
		return nil, err
	}

	return &Config{
		DB: DB{
			Driver: v.GetString("db.driver"),
			DSN:    dsn,
		},
		Telegram: Telegram{
			Token:       v.GetString("telegram.token"),
			BaseURL:     v.GetString("telegram.base_url"),
			PollTimeout: v.GetDuration("telegram.poll_timeout"),
		},
		Bot: Bot{
			MediaTimeout:        v.GetDuration("bot.media_timeout"),
			IgnoreOlderThan:     v.GetDuration("bot.ignore_older_than"),
			SendChance:          v.GetInt("bot.send_chance"),
			SimilarityThreshold: v.GetFloat64("bot.similarity_threshold"),
			SupergroupsOnly:     v.GetBool("bot.supergroups_only"),
			Workers:             v.GetInt("bot.workers"),
		},
		Cache: Cache{
			TagsTTL:   v.GetDuration("cache.tags_ttl"),
			MediaTTL:  v.GetDuration("cache.media_ttl"),
			MediaSize: v.GetInt("cache.media_size"),
			DataSize:  v.GetInt("cache.data_size"),
			RedisAddr: v.GetString("cache.redis_addr"),
		},
		Scheduler: Scheduler{
			SyncInterval: v.GetDuration("scheduler.sync_interval"),
		},
		API: API{
			Addr: v.GetString("api.addr"),
		},
		Log: Log{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}, nil
}

// Validate checks the settings every command relies on.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		return errors.Errorf("unsupported db driver %q", c.DB.Driver)
	}
	if c.DB.DSN == "" {
		return errors.New("db dsn is empty")
	}
	if c.Bot.SimilarityThreshold < 0 || c.Bot.SimilarityThreshold > 1 {
		return errors.Errorf("similarity threshold %v is outside [0, 1]", c.Bot.SimilarityThreshold)
	}
	if c.Bot.SendChance < 0 || c.Bot.SendChance > 100 {
		return errors.Errorf("send chance %d is outside [0, 100]", c.Bot.SendChance)
	}
	return nil
}

// ValidateServe additionally checks what running the bot needs.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Telegram.Token == "" {
		return errors.New("telegram token is required")
	}
	if c.Bot.MediaTimeout > c.Bot.IgnoreOlderThan {
		return errors.Errorf("media timeout %s must not exceed ignore-older-than %s", c.Bot.MediaTimeout, c.Bot.IgnoreOlderThan)
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve home directory")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
