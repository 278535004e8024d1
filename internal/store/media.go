package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pbaille/replybot/internal/domain"
)

// AddMedia stores a media payload under a unique name
func (s *Store) AddMedia(ctx context.Context, name string, typ domain.MediaType, data []byte) (*domain.Media, error) {
	id, err := s.insertID(ctx,
		"INSERT INTO media (name, type, data) VALUES (?, ?, ?)",
		name, string(typ), data,
	)
	if err != nil {
		return nil, fmt.Errorf("insert media: %w", err)
	}

	return &domain.Media{ID: id, Name: name, Type: typ}, nil
}

// ListMedia returns every stored media without payloads
func (s *Store) ListMedia(ctx context.Context) ([]domain.Media, error) {
	return s.listMedia(ctx, "list media",
		"SELECT id, name, type FROM media ORDER BY name")
}

// MediaByName finds a media by name
func (s *Store) MediaByName(ctx context.Context, name string) (*domain.Media, error) {
	var (
		m   domain.Media
		typ string
	)
	err := s.queryRow(ctx, "SELECT id, name, type FROM media WHERE name = ?", name).Scan(&m.ID, &m.Name, &typ)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get media: %w", err)
	}
	m.Type = domain.MediaType(typ)
	return &m, nil
}

// MediaByTag returns the media linked to the tag with the given text
func (s *Store) MediaByTag(ctx context.Context, tagText string) ([]domain.Media, error) {
	return s.listMedia(ctx, "media by tag", `
		SELECT m.id, m.name, m.type
		FROM media m
		JOIN tag_media tm ON tm.media_id = m.id
		JOIN tags t ON t.id = tm.tag_id
		WHERE t.text = ?
		ORDER BY m.id
	`, tagText)
}

// MediaData returns the payload of the named media
func (s *Store) MediaData(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.queryRow(ctx, "SELECT data FROM media WHERE name = ?", name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get media data: %w", err)
	}
	return data, nil
}

// AddMediaFeature marks a media as usable by a feature
func (s *Store) AddMediaFeature(ctx context.Context, mediaID int64, feature domain.Feature) error {
	_, err := s.exec(ctx,
		"INSERT INTO media_features (media_id, feature) VALUES (?, ?) ON CONFLICT DO NOTHING",
		mediaID, string(feature),
	)
	if err != nil {
		return fmt.Errorf("add media feature: %w", err)
	}
	return nil
}

// MediaByFeature returns the media marked for a feature
func (s *Store) MediaByFeature(ctx context.Context, feature domain.Feature) ([]domain.Media, error) {
	return s.listMedia(ctx, "media by feature", `
		SELECT m.id, m.name, m.type
		FROM media m
		JOIN media_features f ON f.media_id = m.id
		WHERE f.feature = ?
		ORDER BY m.id
	`, string(feature))
}

func (s *Store) listMedia(ctx context.Context, op, query string, args ...any) ([]domain.Media, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var media []domain.Media
	for rows.Next() {
		var (
			m   domain.Media
			typ string
		)
		if err := rows.Scan(&m.ID, &m.Name, &typ); err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		m.Type = domain.MediaType(typ)
		media = append(media, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return media, nil
}
