package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/pbaille/replybot/internal/domain"
	"github.com/pbaille/replybot/internal/observability"
	"github.com/pbaille/replybot/internal/telegram"
)

var errNoLink = errors.New("message has no link")

// checkDuplicateForward records the first post of a forward in a chat and answers
// later posts of the same forward with a link to the first one.
func (b *Bot) checkDuplicateForward(ctx context.Context, msg *telegram.Message) error {
	logger := observability.FromContext(ctx)

	fromChat, fromMessage, _ := msg.Forward()
	seen, err := b.forwards.ForwardedMessage(ctx, msg.Chat.ID, fromChat, fromMessage)
	if err != nil {
		return fmt.Errorf("lookup forward: %w", err)
	}

	if seen == nil {
		link, ok := msg.Link()
		if !ok {
			return errNoLink
		}
		return b.forwards.InsertForwardedMessage(ctx, domain.ForwardedMessage{
			ChatID:             msg.Chat.ID,
			ForwardedChatID:    fromChat,
			ForwardedMessageID: fromMessage,
			MessageURL:         link,
		})
	}

	media, err := b.forwards.MediaByFeature(ctx, domain.FeatureDuplicateForward)
	if err != nil {
		return fmt.Errorf("load duplicate forward media: %w", err)
	}
	if len(media) == 0 {
		logger.Warn("no media for duplicate forwards")
		return nil
	}

	if !b.forwardCooldown.AllowAt(msg.Chat.ID, b.now()) {
		logger.Debug("duplicate forward reply is cooling down")
		return nil
	}

	logger.Info("duplicate forward", "first_post", seen.MessageURL)
	return b.SendRandom(ctx, msg.Chat.ID, msg.MessageID, media, seen.MessageURL)
}
