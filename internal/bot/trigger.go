package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pbaille/replybot/internal/classifier"
	"github.com/pbaille/replybot/internal/observability"
	"github.com/pbaille/replybot/internal/telegram"
)

// MessageTokens exposes a message to the recognizer: its text or caption with
// url entities cut out, and the tokens of what remains.
type MessageTokens struct {
	source string
	tokens []string
}

// NewMessageTokens tokenizes msg.
func NewMessageTokens(msg *telegram.Message) MessageTokens {
	text := msg.TextOrCaption()
	urls := msg.URLSpans()
	return MessageTokens{
		source: classifier.Excise(text, urls),
		tokens: classifier.Tokenize(text, urls),
	}
}

func (m MessageTokens) Source() string   { return m.source }
func (m MessageTokens) Tokens() []string { return m.tokens }

// replyOnTextTrigger answers a message whose text triggers a tag. The chat's
// cooldown slot is taken before any lookup, so a message that ends up without a
// reply still starts the cooldown.
func (b *Bot) replyOnTextTrigger(ctx context.Context, msg *telegram.Message) error {
	logger := observability.FromContext(ctx)

	if !b.textCooldown.AllowAt(msg.Chat.ID, b.now()) {
		logger.Debug("chat is cooling down")
		return nil
	}

	tags, err := b.catalog.Tags(ctx)
	if err != nil {
		return fmt.Errorf("load tags: %w", err)
	}

	tag, ok := b.recognizer.RecognizeIn(NewMessageTokens(msg), tags, b.opts.SimilarityThreshold)
	if !ok {
		return nil
	}
	logger = logger.With(slog.String(observability.LogFieldTag, tag))

	media, err := b.catalog.MediaByTag(ctx, tag)
	if err != nil {
		return fmt.Errorf("load media for tag %q: %w", tag, err)
	}
	if len(media) == 0 {
		logger.Warn("no media associated with tag")
		return nil
	}

	if !b.shouldSend() {
		logger.Debug("match omitted by send chance")
		return nil
	}

	return b.SendRandom(observability.WithLogger(ctx, logger), msg.Chat.ID, msg.MessageID, media, "")
}

// shouldSend rolls the send chance.
func (b *Bot) shouldSend() bool {
	return b.chooser.Choose(100) >= 100-b.opts.SendChance
}
