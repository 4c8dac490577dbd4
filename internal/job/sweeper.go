package job

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DirRemover removes a job's working directory.
type DirRemover interface {
	Remove(jobID string) error
}

// Sweeper periodically removes jobs older than the TTL, along with their
// working directories, regardless of status. With no persistent job store
// this sweep is the primary bound on disk usage under sustained load.
type Sweeper struct {
	repo     Repository
	dirs     DirRemover
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper.
func NewSweeper(repo Repository, dirs DirRemover, ttl, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{
		repo:     repo,
		dirs:     dirs,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.SweepOnce(ctx)
			if err != nil {
				s.logger.Warn("sweep failed", slog.String("error", err.Error()))
				continue
			}
			if removed > 0 {
				s.logger.Info("swept expired jobs", slog.Int("removed", removed))
			}
		}
	}
}

// SweepOnce removes all expired jobs and returns how many were reclaimed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	jobs, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, j := range jobs {
		if j.Age() < s.ttl {
			continue
		}
		if err := s.dirs.Remove(j.ID); err != nil {
			s.logger.Warn("failed to remove job directory",
				slog.String("job_id", j.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := s.repo.Delete(ctx, j.ID); err != nil && !errors.Is(err, ErrJobNotFound) {
			s.logger.Warn("failed to delete job record",
				slog.String("job_id", j.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}

	return removed, nil
}
