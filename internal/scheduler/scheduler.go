// Package scheduler broadcasts media to chats on cron schedules stored in the database.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pbaille/replybot/internal/domain"
	"github.com/pbaille/replybot/internal/observability"
)

// JobStore lists scheduled broadcasts and their media.
type JobStore interface {
	CronJobs(ctx context.Context) ([]domain.CronJob, error)
	MediaByCronJob(ctx context.Context, jobID int64) ([]domain.Media, error)
}

// Sender delivers one media picked from a list.
type Sender interface {
	SendRandom(ctx context.Context, chatID, replyTo int64, media []domain.Media, caption string) error
}

// Parser accepts standard five field specs, an optional leading seconds field and descriptors like @hourly.
var Parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler keeps cron entries in step with the stored jobs
type Scheduler struct {
	jobs     JobStore
	sender   Sender
	interval time.Duration
	logger   *slog.Logger
	cron     *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// New creates a Scheduler that reloads jobs every interval.
func New(jobs JobStore, sender Sender, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		jobs:     jobs,
		sender:   sender,
		interval: interval,
		logger:   logger,
		cron:     cron.New(cron.WithParser(Parser)),
		entries:  make(map[string]cron.EntryID),
	}
}

// Run loads the jobs, starts firing them and refreshes the job list until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, _, err := s.Sync(ctx); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("jobs", s.Len()))

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			<-s.cron.Stop().Done()
			s.logger.Info("scheduler stopped")
			return nil
		case <-tick:
			if _, _, err := s.Sync(ctx); err != nil {
				s.logger.Error("failed to refresh cron jobs", slog.Any("error", err))
			}
		}
	}
}

// Sync registers stored jobs that are not scheduled yet and drops entries whose
// job changed or disappeared. Jobs with an invalid pattern are logged and skipped.
func (s *Scheduler) Sync(ctx context.Context) (added, removed int, err error) {
	jobs, err := s.jobs.CronJobs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("load cron jobs: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[string]domain.CronJob, len(jobs))
	for _, j := range jobs {
		wanted[jobKey(j)] = j
	}

	for key, id := range s.entries {
		if _, ok := wanted[key]; !ok {
			s.cron.Remove(id)
			delete(s.entries, key)
			removed++
		}
	}

	for key, job := range wanted {
		if _, ok := s.entries[key]; ok {
			continue
		}
		id, err := s.cron.AddFunc(job.Pattern, func() { s.Fire(context.Background(), job) })
		if err != nil {
			s.logger.Error("failed to schedule cron job",
				slog.Int64(observability.LogFieldJob, job.ID),
				slog.String("pattern", job.Pattern),
				slog.Any("error", err))
			continue
		}
		s.entries[key] = id
		added++
	}

	if added > 0 || removed > 0 {
		s.logger.Info("cron jobs synced", slog.Int("added", added), slog.Int("removed", removed))
	}
	return added, removed, nil
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Fire sends one media of the job to its chat.
func (s *Scheduler) Fire(ctx context.Context, job domain.CronJob) {
	logger := observability.ForJob(s.logger, job.ID)
	ctx = observability.WithLogger(ctx, logger)

	if job.ChatID == nil {
		logger.Error("cron job has no chat, broadcasting to every chat is not supported")
		return
	}

	media, err := s.jobs.MediaByCronJob(ctx, job.ID)
	if err != nil {
		logger.Error("failed to load cron job media", slog.Any("error", err))
		return
	}
	if len(media) == 0 {
		logger.Error("no media found for cron job", slog.String("pattern", job.Pattern))
		return
	}

	var caption string
	if job.Caption != nil {
		caption = *job.Caption
	}
	if err := s.sender.SendRandom(ctx, *job.ChatID, 0, media, caption); err != nil {
		logger.Error("failed to send scheduled media", slog.Any("error", err))
	}
}

// jobKey changes whenever a job's schedule or target changes, so edits re-register it.
func jobKey(j domain.CronJob) string {
	key := fmt.Sprintf("%d|%q", j.ID, j.Pattern)
	if j.ChatID != nil {
		key += fmt.Sprintf("|chat=%d", *j.ChatID)
	}
	if j.Caption != nil {
		key += fmt.Sprintf("|caption=%q", *j.Caption)
	}
	return key
}
