package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pbaille/replybot/internal/domain"
	"github.com/pbaille/replybot/internal/observability"
	"github.com/pbaille/replybot/internal/telegram"
)

// SendRandom sends one of media, picked uniformly, to a chat. replyTo may be zero.
func (b *Bot) SendRandom(ctx context.Context, chatID, replyTo int64, media []domain.Media, caption string) error {
	if len(media) == 0 {
		return fmt.Errorf("no media to send to chat %d", chatID)
	}
	m := media[b.chooser.Choose(len(media))]

	data, err := b.catalog.MediaData(ctx, m.Name)
	if err != nil {
		return fmt.Errorf("load media %q: %w", m.Name, err)
	}

	err = b.transport.SendMedia(ctx, telegram.SendMediaRequest{
		ChatID:  chatID,
		ReplyTo: replyTo,
		Type:    m.Type,
		Name:    m.Name,
		Data:    data,
		Caption: caption,
	})
	if err != nil {
		return fmt.Errorf("send media %q: %w", m.Name, err)
	}

	observability.FromContext(ctx).Info("media sent",
		slog.String(observability.LogFieldMedia, m.Name),
		slog.String("type", string(m.Type)))
	return nil
}
