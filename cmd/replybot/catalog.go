package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pbaille/replybot/internal/config"
	"github.com/pbaille/replybot/internal/domain"
	"github.com/pbaille/replybot/internal/fetcher"
	"github.com/pbaille/replybot/internal/scheduler"
	"github.com/pbaille/replybot/internal/store"
)

// withStore loads the config, opens the store and runs fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, s *store.Store) error) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := getStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(cmd.Context(), cfg, s)
}

// dropSharedTags clears the tag list other bot instances share through Redis,
// so a running bot sees catalog edits before its local cache expires.
func dropSharedTags(ctx context.Context, cfg *config.Config, s *store.Store) {
	l2, err := sharedCache(ctx, cfg)
	if err != nil {
		slog.Warn("shared cache unavailable", slog.Any("error", err))
		return
	}
	if l2 == nil {
		return
	}
	defer l2.Close()
	newCatalog(s, l2, cfg, slog.Default()).Invalidate(ctx)
}

func tagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Manage trigger tags",
	}
	cmd.AddCommand(tagsAddCmd(), tagsListCmd(), tagsRemoveCmd())
	return cmd
}

func tagsAddCmd() *cobra.Command {
	var (
		strategy string
		scope    string
		media    []string
	)

	cmd := &cobra.Command{
		Use:   "add [text]",
		Short: "Add a tag, optionally linked to existing media",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := domain.ParseStrategy(strategy)
			if err != nil {
				return err
			}
			sc, err := domain.ParseScope(scope)
			if err != nil {
				return err
			}

			return withStore(cmd, func(ctx context.Context, cfg *config.Config, s *store.Store) error {
				tag, err := s.AddTag(ctx, args[0], st, sc)
				if err != nil {
					return err
				}
				fmt.Printf("Added tag %d: %s (%s, %s)\n", tag.ID, tag.Text, tag.Strategy, tag.Scope)

				for _, name := range media {
					m, err := s.MediaByName(ctx, name)
					if err != nil {
						return fmt.Errorf("media %q: %w", name, err)
					}
					if err := s.LinkTagMedia(ctx, tag.ID, m.ID); err != nil {
						return err
					}
					fmt.Printf("  + %s\n", m.Name)
				}

				dropSharedTags(ctx, cfg, s)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", "fuzzy", "match strategy: fuzzy or exact (regular expression)")
	cmd.Flags().StringVar(&scope, "scope", "token", "match scope: token or message")
	cmd.Flags().StringSliceVarP(&media, "media", "m", nil, "media names to link")
	return cmd
}

func tagsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, _ *config.Config, s *store.Store) error {
				tags, err := s.Tags(ctx)
				if err != nil {
					return err
				}

				if len(tags) == 0 {
					fmt.Println("No tags yet. Use 'replybot tags add' to create one.")
					return nil
				}

				for _, t := range tags {
					fmt.Printf("%4d  %-6s %-8s %s\n", t.ID, t.Strategy, t.Scope, truncate(t.Text, 60))
				}
				return nil
			})
		},
	}
}

func tagsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm [id]",
		Short: "Remove a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid tag id %q", args[0])
			}

			return withStore(cmd, func(ctx context.Context, cfg *config.Config, s *store.Store) error {
				if err := s.RemoveTag(ctx, id); err != nil {
					return err
				}
				fmt.Printf("Removed tag %d\n", id)
				dropSharedTags(ctx, cfg, s)
				return nil
			})
		},
	}
}

func mediaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "media",
		Short: "Manage reply media",
	}
	cmd.AddCommand(mediaAddCmd(), mediaListCmd(), mediaLinkCmd())
	return cmd
}

func mediaAddCmd() *cobra.Command {
	var (
		typ      string
		file     string
		url      string
		tags     []string
		features []string
	)

	cmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Store a media from a file or URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mt, err := domain.ParseMediaType(typ)
			if err != nil {
				return err
			}
			if (file == "") == (url == "") {
				return fmt.Errorf("exactly one of --file or --url is required")
			}

			var data []byte
			if file != "" {
				data, err = os.ReadFile(filepath.Clean(file))
			} else {
				var res *fetcher.Result
				res, err = fetcher.New(nil).Fetch(cmd.Context(), url)
				if res != nil {
					data = res.Data
					fmt.Printf("Fetched %s (%s, %d bytes)\n", res.URL, res.ContentType, len(res.Data))
				}
			}
			if err != nil {
				return err
			}

			return withStore(cmd, func(ctx context.Context, cfg *config.Config, s *store.Store) error {
				m, err := s.AddMedia(ctx, args[0], mt, data)
				if err != nil {
					return err
				}
				fmt.Printf("Added %s %q (%d bytes)\n", m.Type, m.Name, len(data))
				return linkMedia(ctx, cfg, s, m, tags, features, nil)
			})
		},
	}

	cmd.Flags().StringVarP(&typ, "type", "t", "", "media type: voice, video or picture")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the media from a file")
	cmd.Flags().StringVar(&url, "url", "", "download the media, or the media a page embeds")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag texts to link")
	cmd.Flags().StringSliceVar(&features, "feature", nil, "features to enable (duplicate_forward)")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func mediaListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored media",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, _ *config.Config, s *store.Store) error {
				media, err := s.ListMedia(ctx)
				if err != nil {
					return err
				}

				if len(media) == 0 {
					fmt.Println("No media yet. Use 'replybot media add' to store one.")
					return nil
				}

				for _, m := range media {
					fmt.Printf("%4d  %-8s %s\n", m.ID, m.Type, m.Name)
				}
				return nil
			})
		},
	}
}

func mediaLinkCmd() *cobra.Command {
	var (
		tags     []string
		features []string
		jobs     []int64
	)

	cmd := &cobra.Command{
		Use:   "link [name]",
		Short: "Link a media to tags, features or cron jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, cfg *config.Config, s *store.Store) error {
				m, err := s.MediaByName(ctx, args[0])
				if err != nil {
					return fmt.Errorf("media %q: %w", args[0], err)
				}
				return linkMedia(ctx, cfg, s, m, tags, features, jobs)
			})
		},
	}

	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag texts to link")
	cmd.Flags().StringSliceVar(&features, "feature", nil, "features to enable (duplicate_forward)")
	cmd.Flags().Int64SliceVar(&jobs, "cron", nil, "cron job ids to link")
	return cmd
}

func linkMedia(ctx context.Context, cfg *config.Config, s *store.Store, m *domain.Media, tags, features []string, jobs []int64) error {
	for _, text := range tags {
		tag, err := s.TagByText(ctx, text)
		if err != nil {
			return fmt.Errorf("tag %q: %w", text, err)
		}
		if err := s.LinkTagMedia(ctx, tag.ID, m.ID); err != nil {
			return err
		}
		fmt.Printf("  + tag %s\n", tag.Text)
	}
	for _, f := range features {
		feature := domain.Feature(strings.TrimSpace(f))
		if feature != domain.FeatureDuplicateForward {
			return fmt.Errorf("unknown feature %q", f)
		}
		if err := s.AddMediaFeature(ctx, m.ID, feature); err != nil {
			return err
		}
		fmt.Printf("  + feature %s\n", feature)
	}
	for _, id := range jobs {
		if err := s.LinkCronJobMedia(ctx, id, m.ID); err != nil {
			return err
		}
		fmt.Printf("  + cron job %d\n", id)
	}
	if len(tags) > 0 {
		dropSharedTags(ctx, cfg, s)
	}
	return nil
}

func cronCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Manage scheduled broadcasts",
	}
	cmd.AddCommand(cronAddCmd(), cronListCmd())
	return cmd
}

func cronAddCmd() *cobra.Command {
	var (
		chatID      int64
		caption     string
		description string
		media       []string
	)

	cmd := &cobra.Command{
		Use:   "add [pattern]",
		Short: "Schedule a broadcast of a random linked media",
		Long:  "Patterns have five fields, an optional leading seconds field, or a descriptor such as @daily.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := scheduler.Parser.Parse(args[0]); err != nil {
				return fmt.Errorf("invalid cron pattern: %w", err)
			}

			job := domain.CronJob{Pattern: args[0]}
			if cmd.Flags().Changed("chat") {
				job.ChatID = &chatID
			}
			if caption != "" {
				job.Caption = &caption
			}
			if description != "" {
				job.Description = &description
			}

			return withStore(cmd, func(ctx context.Context, _ *config.Config, s *store.Store) error {
				created, err := s.AddCronJob(ctx, job)
				if err != nil {
					return err
				}
				fmt.Printf("Added cron job %d: %s\n", created.ID, created.Pattern)

				for _, name := range media {
					m, err := s.MediaByName(ctx, name)
					if err != nil {
						return fmt.Errorf("media %q: %w", name, err)
					}
					if err := s.LinkCronJobMedia(ctx, created.ID, m.ID); err != nil {
						return err
					}
					fmt.Printf("  + %s\n", m.Name)
				}
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&chatID, "chat", 0, "target chat id")
	cmd.Flags().StringVar(&caption, "caption", "", "caption sent with the media")
	cmd.Flags().StringVar(&description, "description", "", "free-form note")
	cmd.Flags().StringSliceVarP(&media, "media", "m", nil, "media names to pick from")
	return cmd
}

func cronListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled broadcasts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, _ *config.Config, s *store.Store) error {
				jobs, err := s.CronJobs(ctx)
				if err != nil {
					return err
				}

				if len(jobs) == 0 {
					fmt.Println("No cron jobs yet. Use 'replybot cron add' to schedule one.")
					return nil
				}

				for _, j := range jobs {
					chat := "-"
					if j.ChatID != nil {
						chat = strconv.FormatInt(*j.ChatID, 10)
					}
					line := fmt.Sprintf("%4d  %-20s chat=%s", j.ID, j.Pattern, chat)
					if j.Description != nil {
						line += "  " + truncate(*j.Description, 40)
					}
					fmt.Println(line)
				}
				return nil
			})
		},
	}
}

func truncate(s string, max int) string {
	// Replace newlines with spaces for display
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
