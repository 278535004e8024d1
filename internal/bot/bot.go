// Package bot reacts to chat messages with stored media.
//
// Two behaviours are wired: a text trigger that recognizes configured tags in a
// message, and a duplicate checker that calls out forwards already posted in the chat.
package bot

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pbaille/replybot/internal/classifier"
	"github.com/pbaille/replybot/internal/cooldown"
	"github.com/pbaille/replybot/internal/domain"
	"github.com/pbaille/replybot/internal/observability"
	"github.com/pbaille/replybot/internal/telegram"
)

// Transport receives updates and sends media replies.
type Transport interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, int64, error)
	SendMedia(ctx context.Context, r telegram.SendMediaRequest) error
}

// Catalog provides the tags and the media they map to.
type Catalog interface {
	Tags(ctx context.Context) ([]domain.Tag, error)
	MediaByTag(ctx context.Context, tagText string) ([]domain.Media, error)
	MediaData(ctx context.Context, name string) ([]byte, error)
}

// ForwardStore remembers forwards and the media used to call out duplicates.
type ForwardStore interface {
	ForwardedMessage(ctx context.Context, chatID, forwardedChatID, forwardedMessageID int64) (*domain.ForwardedMessage, error)
	InsertForwardedMessage(ctx context.Context, fm domain.ForwardedMessage) error
	MediaByFeature(ctx context.Context, feature domain.Feature) ([]domain.Media, error)
}

// Options tune the bot's behaviour.
type Options struct {
	// MediaTimeout is the per-chat cooldown between two replies of the same kind.
	MediaTimeout time.Duration
	// IgnoreOlderThan drops text messages older than this when they arrive.
	IgnoreOlderThan time.Duration
	// SendChance is the percentage of recognized messages that get a reply.
	SendChance          int
	SimilarityThreshold float64
	SupergroupsOnly     bool
	PollTimeout         time.Duration
	// Workers bounds the number of chats handled at once.
	Workers int
}

// DefaultOptions returns the configuration defaults.
func DefaultOptions() Options {
	return Options{
		MediaTimeout:        30 * time.Second,
		IgnoreOlderThan:     60 * time.Second,
		SendChance:          50,
		SimilarityThreshold: 0.25,
		SupergroupsOnly:     true,
		PollTimeout:         30 * time.Second,
		Workers:             8,
	}
}

// Bot dispatches updates to the text trigger and the duplicate checker.
type Bot struct {
	transport Transport
	catalog   Catalog
	forwards  ForwardStore
	opts      Options

	recognizer      *classifier.Recognizer
	chooser         classifier.Chooser
	textCooldown    *cooldown.Limiter
	forwardCooldown *cooldown.Limiter
	now             func() time.Time
	logger          *slog.Logger
}

// Option configures a Bot
type Option func(*Bot)

// WithChooser sets the random source used to pick media and roll the send chance.
func WithChooser(c classifier.Chooser) Option {
	return func(b *Bot) { b.chooser = c }
}

// WithRecognizer replaces the tag recognizer.
func WithRecognizer(r *classifier.Recognizer) Option {
	return func(b *Bot) { b.recognizer = r }
}

// WithClock sets the time source used for message age and cooldowns.
func WithClock(now func() time.Time) Option {
	return func(b *Bot) { b.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Bot) { b.logger = l }
}

// New creates a Bot
func New(transport Transport, catalog Catalog, forwards ForwardStore, opts Options, options ...Option) *Bot {
	b := &Bot{
		transport:       transport,
		catalog:         catalog,
		forwards:        forwards,
		opts:            opts,
		chooser:         classifier.RandomChooser{},
		textCooldown:    cooldown.New(opts.MediaTimeout),
		forwardCooldown: cooldown.New(opts.MediaTimeout),
		now:             time.Now,
		logger:          slog.Default(),
	}
	for _, o := range options {
		o(b)
	}
	if b.recognizer == nil {
		b.recognizer = classifier.New(classifier.WithLogger(b.logger))
	}
	if b.opts.Workers <= 0 {
		b.opts.Workers = 1
	}
	return b
}

// Run long polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("bot started", slog.Duration("poll_timeout", b.opts.PollTimeout))

	var offset int64
	for {
		if ctx.Err() != nil {
			b.logger.Info("bot stopped")
			return nil
		}

		updates, next, err := b.transport.GetUpdates(ctx, offset, b.opts.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			b.logger.Warn("get updates failed", slog.Any("error", err))
			select {
			case <-ctx.Done():
			case <-time.After(3 * time.Second):
			}
			continue
		}
		offset = next

		b.HandleUpdates(ctx, updates)
	}
}

// HandleUpdates processes a batch. Messages of one chat are handled in order,
// different chats concurrently.
func (b *Bot) HandleUpdates(ctx context.Context, updates []telegram.Update) {
	byChat := make(map[int64][]telegram.Update)
	var order []int64
	for _, u := range updates {
		if u.Message == nil || u.Message.Chat == nil {
			continue
		}
		id := u.Message.Chat.ID
		if _, ok := byChat[id]; !ok {
			order = append(order, id)
		}
		byChat[id] = append(byChat[id], u)
	}

	var g errgroup.Group
	g.SetLimit(b.opts.Workers)
	for _, chatID := range order {
		batch := byChat[chatID]
		g.Go(func() error {
			for _, u := range batch {
				b.HandleMessage(ctx, u.UpdateID, u.Message)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// HandleMessage routes one message. Failures are logged, never returned, so a bad
// message cannot stop the poll loop.
func (b *Bot) HandleMessage(ctx context.Context, updateID int64, msg *telegram.Message) {
	logger := observability.ForUpdate(b.logger, updateID, msg.Chat.ID, msg.MessageID)
	ctx = observability.WithLogger(ctx, logger)

	if b.opts.SupergroupsOnly && !msg.IsSupergroup() {
		logger.Debug("skipping message outside supergroup")
		return
	}

	if _, _, ok := msg.Forward(); ok {
		if err := b.checkDuplicateForward(ctx, msg); err != nil {
			logger.Error("duplicate forward check failed", slog.Any("error", err))
		}
		return
	}

	if age := b.now().Sub(msg.Time()); age > b.opts.IgnoreOlderThan {
		logger.Debug("skipping old message", slog.Duration("age", age))
		return
	}

	if err := b.replyOnTextTrigger(ctx, msg); err != nil {
		logger.Error("text trigger failed", slog.Any("error", err))
	}
}
