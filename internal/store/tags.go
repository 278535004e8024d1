package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pbaille/replybot/internal/domain"
)

// AddTag creates a new tag and returns it
func (s *Store) AddTag(ctx context.Context, text string, strategy domain.MatchStrategy, scope domain.Scope) (*domain.Tag, error) {
	id, err := s.insertID(ctx,
		"INSERT INTO tags (text, strategy, scope) VALUES (?, ?, ?)",
		text, strategy.String(), scope.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert tag: %w", err)
	}

	return &domain.Tag{
		ID:       id,
		Text:     text,
		Strategy: strategy,
		Scope:    scope,
	}, nil
}

// Tags returns the whole tag catalog
func (s *Store) Tags(ctx context.Context) ([]domain.Tag, error) {
	rows, err := s.query(ctx, "SELECT id, text, strategy, scope FROM tags ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []domain.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	return tags, nil
}

// TagByText finds a tag by its exact text
func (s *Store) TagByText(ctx context.Context, text string) (*domain.Tag, error) {
	row := s.queryRow(ctx, "SELECT id, text, strategy, scope FROM tags WHERE text = ?", text)
	t, err := scanTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// RemoveTag deletes a tag and its media links
func (s *Store) RemoveTag(ctx context.Context, id int64) error {
	if err := s.deleteOne(ctx, "DELETE FROM tags WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return nil
}

// LinkTagMedia associates a media with a tag. Linking twice is a no-op.
func (s *Store) LinkTagMedia(ctx context.Context, tagID, mediaID int64) error {
	_, err := s.exec(ctx,
		"INSERT INTO tag_media (tag_id, media_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
		tagID, mediaID,
	)
	if err != nil {
		return fmt.Errorf("link tag media: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTag(row rowScanner) (*domain.Tag, error) {
	var (
		t               domain.Tag
		strategy, scope string
	)
	if err := row.Scan(&t.ID, &t.Text, &strategy, &scope); err != nil {
		return nil, fmt.Errorf("scan tag: %w", err)
	}

	var err error
	if t.Strategy, err = domain.ParseStrategy(strategy); err != nil {
		return nil, fmt.Errorf("scan tag %d: %w", t.ID, err)
	}
	if t.Scope, err = domain.ParseScope(scope); err != nil {
		return nil, fmt.Errorf("scan tag %d: %w", t.ID, err)
	}
	return &t, nil
}
