package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pbaille/replybot/internal/classifier"
	"github.com/pbaille/replybot/internal/config"
	"github.com/pbaille/replybot/internal/store"
)

func recognizeCmd() *cobra.Command {
	var (
		urls      []string
		threshold float64
	)

	cmd := &cobra.Command{
		Use:   "recognize [text...]",
		Short: "Show which tag a message would trigger",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")

			return withStore(cmd, func(ctx context.Context, cfg *config.Config, s *store.Store) error {
				tags, err := s.Tags(ctx)
				if err != nil {
					return err
				}
				if !cmd.Flags().Changed("threshold") {
					threshold = cfg.Bot.SimilarityThreshold
				}

				tokens := classifier.Tokenize(text, urls)
				fmt.Printf("Tokens: %s\n", strings.Join(tokens, " | "))

				tag, ok := classifier.New().Recognize(classifier.Excise(text, urls), tokens, tags, threshold)
				if !ok {
					fmt.Println("No tag matched.")
					return nil
				}
				fmt.Printf("Matched: %s\n", tag)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&urls, "url", nil, "URL spans to cut from the text")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "similarity threshold (default from config)")
	return cmd
}
