package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pbaille/replybot/internal/domain"
)

// ForwardedMessage returns the first recorded post of a forward in a chat,
// or nil when the forward has not been seen there.
func (s *Store) ForwardedMessage(ctx context.Context, chatID, forwardedChatID, forwardedMessageID int64) (*domain.ForwardedMessage, error) {
	fm := domain.ForwardedMessage{
		ChatID:             chatID,
		ForwardedChatID:    forwardedChatID,
		ForwardedMessageID: forwardedMessageID,
	}
	err := s.queryRow(ctx, `
		SELECT message_url FROM forwarded_messages
		WHERE chat_id = ? AND forwarded_chat_id = ? AND forwarded_message_id = ?
	`, chatID, forwardedChatID, forwardedMessageID).Scan(&fm.MessageURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get forwarded message: %w", err)
	}
	return &fm, nil
}

// InsertForwardedMessage records a forward. The first record for a chat wins.
func (s *Store) InsertForwardedMessage(ctx context.Context, fm domain.ForwardedMessage) error {
	_, err := s.exec(ctx, `
		INSERT INTO forwarded_messages (chat_id, forwarded_chat_id, forwarded_message_id, message_url)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, fm.ChatID, fm.ForwardedChatID, fm.ForwardedMessageID, fm.MessageURL)
	if err != nil {
		return fmt.Errorf("insert forwarded message: %w", err)
	}
	return nil
}
