package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pbaille/replybot/internal/domain"
)

// AddCronJob creates a scheduled broadcast
func (s *Store) AddCronJob(ctx context.Context, job domain.CronJob) (*domain.CronJob, error) {
	id, err := s.insertID(ctx,
		"INSERT INTO cron_jobs (pattern, chat_id, caption, description) VALUES (?, ?, ?, ?)",
		job.Pattern, job.ChatID, job.Caption, job.Description,
	)
	if err != nil {
		return nil, fmt.Errorf("insert cron job: %w", err)
	}

	job.ID = id
	return &job, nil
}

// CronJobs returns every scheduled broadcast
func (s *Store) CronJobs(ctx context.Context) ([]domain.CronJob, error) {
	rows, err := s.query(ctx, "SELECT id, pattern, chat_id, caption, description FROM cron_jobs ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list cron jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.CronJob
	for rows.Next() {
		var (
			j                    domain.CronJob
			chatID               sql.NullInt64
			caption, description sql.NullString
		)
		if err := rows.Scan(&j.ID, &j.Pattern, &chatID, &caption, &description); err != nil {
			return nil, fmt.Errorf("scan cron job: %w", err)
		}
		if chatID.Valid {
			j.ChatID = &chatID.Int64
		}
		if caption.Valid {
			j.Caption = &caption.String
		}
		if description.Valid {
			j.Description = &description.String
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cron jobs: %w", err)
	}

	return jobs, nil
}

// LinkCronJobMedia adds a media to the set a job picks from
func (s *Store) LinkCronJobMedia(ctx context.Context, jobID, mediaID int64) error {
	_, err := s.exec(ctx,
		"INSERT INTO cron_job_media (cron_job_id, media_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
		jobID, mediaID,
	)
	if err != nil {
		return fmt.Errorf("link cron job media: %w", err)
	}
	return nil
}

// MediaByCronJob returns the media a job picks from
func (s *Store) MediaByCronJob(ctx context.Context, jobID int64) ([]domain.Media, error) {
	return s.listMedia(ctx, "media by cron job", `
		SELECT m.id, m.name, m.type
		FROM media m
		JOIN cron_job_media cm ON cm.media_id = m.id
		WHERE cm.cron_job_id = ?
		ORDER BY m.id
	`, jobID)
}
