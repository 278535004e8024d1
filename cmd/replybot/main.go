package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pbaille/replybot/internal/api"
	"github.com/pbaille/replybot/internal/bot"
	"github.com/pbaille/replybot/internal/cache"
	"github.com/pbaille/replybot/internal/config"
	"github.com/pbaille/replybot/internal/observability"
	"github.com/pbaille/replybot/internal/scheduler"
	"github.com/pbaille/replybot/internal/store"
	"github.com/pbaille/replybot/internal/telegram"
)

const redisKeyPrefix = "replybot:"

var v = config.New()

func main() {
	rootCmd := &cobra.Command{
		Use:           "replybot",
		Short:         "Chat bot answering trigger words with stored media",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var cfgFile string
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver (sqlite or postgres)")
	rootCmd.PersistentFlags().String("db", "", "database DSN or sqlite path")
	rootCmd.PersistentFlags().String("log-level", "info", "log level")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text or json)")
	bindFlag(rootCmd, "db.driver", "driver")
	bindFlag(rootCmd, "db.dsn", "db")
	bindFlag(rootCmd, "log.level", "log-level")
	bindFlag(rootCmd, "log.format", "log-format")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
		}
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tagsCmd())
	rootCmd.AddCommand(mediaCmd())
	rootCmd.AddCommand(cronCmd())
	rootCmd.AddCommand(recognizeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// bindFlag binds a flag to a config key. An unset flag leaves env and file values in place.
func bindFlag(cmd *cobra.Command, key, flag string) {
	f := cmd.PersistentFlags().Lookup(flag)
	if f == nil {
		f = cmd.Flags().Lookup(flag)
	}
	if err := v.BindPFlag(key, f); err != nil {
		panic(err)
	}
}

// loadConfig reads and validates the configuration and installs the logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func getStore(cfg *config.Config) (*store.Store, error) {
	if cfg.DB.Driver == store.DriverSQLite && cfg.DB.DSN != ":memory:" {
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(cfg.DB.DSN), 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	return store.New(cfg.DB.Driver, cfg.DB.DSN)
}

// sharedCache connects the optional Redis second level, nil when not configured.
func sharedCache(ctx context.Context, cfg *config.Config) (*cache.RedisStore, error) {
	if cfg.Cache.RedisAddr == "" {
		return nil, nil
	}
	return cache.NewRedisStore(ctx, cfg.Cache.RedisAddr, redisKeyPrefix)
}

func newCatalog(st *store.Store, l2 *cache.RedisStore, cfg *config.Config, logger *slog.Logger) *cache.CachedCatalog {
	var shared cache.L2
	if l2 != nil {
		shared = l2
	}
	return cache.NewCachedCatalog(st, shared, cache.Config{
		TagsTTL:   cfg.Cache.TagsTTL,
		MediaTTL:  cfg.Cache.MediaTTL,
		MediaSize: cfg.Cache.MediaSize,
		DataSize:  cfg.Cache.DataSize,
	}, logger)
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, the cron scheduler and the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateServe(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := getStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			l2, err := sharedCache(ctx, cfg)
			if err != nil {
				return err
			}
			if l2 != nil {
				defer l2.Close()
			}
			catalog := newCatalog(st, l2, cfg, logger)

			tg := telegram.NewClient(nil, cfg.Telegram.BaseURL, cfg.Telegram.Token)
			me, err := tg.GetMe(ctx)
			if err != nil {
				return fmt.Errorf("check telegram token: %w", err)
			}
			logger.Info("connected to telegram", slog.String("username", me.Username))

			b := bot.New(tg, catalog, st, bot.Options{
				MediaTimeout:        cfg.Bot.MediaTimeout,
				IgnoreOlderThan:     cfg.Bot.IgnoreOlderThan,
				SendChance:          cfg.Bot.SendChance,
				SimilarityThreshold: cfg.Bot.SimilarityThreshold,
				SupergroupsOnly:     cfg.Bot.SupergroupsOnly,
				PollTimeout:         cfg.Telegram.PollTimeout,
				Workers:             cfg.Bot.Workers,
			}, bot.WithLogger(logger))
			sched := scheduler.New(st, b, cfg.Scheduler.SyncInterval, logger)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return b.Run(ctx) })
			g.Go(func() error { return sched.Run(ctx) })
			if cfg.API.Addr != "" {
				server := api.New(st, catalog, cfg.Bot.SimilarityThreshold, cfg.API.Addr, logger)
				g.Go(func() error { return server.Run(ctx) })
			}
			return g.Wait()
		},
	}

	cmd.Flags().String("token", "", "telegram bot token")
	cmd.Flags().StringP("addr", "a", "127.0.0.1:8080", "admin API address, empty to disable")
	bindFlag(cmd, "telegram.token", "token")
	bindFlag(cmd, "api.addr", "addr")
	return cmd
}
