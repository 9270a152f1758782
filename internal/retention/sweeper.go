// Package retention deletes date buckets older than the configured horizon.
package retention

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/haoyun/filedrop/internal/store"
)

// bucketStore is the slice of the dated store the sweeper needs.
type bucketStore interface {
	Buckets(ctx context.Context) ([]string, error)
	RemoveBucket(ctx context.Context, date string) error
}

// Sweeper periodically removes buckets whose date is strictly older than
// now minus the retention horizon. Directories whose names do not parse as
// dates are treated as foreign and never touched.
type Sweeper struct {
	buckets       bucketStore
	retentionDays int
	interval      time.Duration
	clock         store.Clock
	logger        *log.Logger
	onDeleted     func(count int)
}

// NewSweeper constructs a sweeper. onDeleted, when non-nil, receives the
// number of buckets removed by each sweep (used for metrics).
func NewSweeper(buckets bucketStore, retentionDays int, interval time.Duration, clock store.Clock, logger *log.Logger, onDeleted func(count int)) *Sweeper {
	return &Sweeper{
		buckets:       buckets,
		retentionDays: retentionDays,
		interval:      interval,
		clock:         clock,
		logger:        logger,
		onDeleted:     onDeleted,
	}
}

// SweepNow runs one retention pass. Per-bucket deletion failures are logged
// and do not abort the rest of the sweep. Returns the number of buckets
// deleted; the error covers only the initial listing.
func (s *Sweeper) SweepNow(ctx context.Context) (int, error) {
	s.logger.Info("cleaning old buckets", "retention_days", s.retentionDays)

	names, err := s.buckets.Buckets(ctx)
	if err != nil {
		s.logger.Error("list buckets for sweep", "error", err)
		return 0, err
	}

	// Midnight-truncate so the comparison is by calendar day, not clock time.
	now := s.clock.Now()
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -s.retentionDays)

	deleted := 0
	for _, name := range names {
		date, err := store.ParseDate(name)
		if err != nil {
			// Not a managed date bucket; leave it alone.
			continue
		}
		if !date.Before(cutoff) {
			continue
		}

		if err := s.buckets.RemoveBucket(ctx, name); err != nil {
			s.logger.Error("delete old bucket", "bucket", name, "error", err)
			continue
		}
		s.logger.Info("deleted old bucket", "bucket", name)
		deleted++
	}

	if s.onDeleted != nil {
		s.onDeleted(deleted)
	}
	s.logger.Info("cleaning finished", "deleted", deleted)
	return deleted, nil
}

// Run sweeps once immediately and then on every interval tick until the
// context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if _, err := s.SweepNow(ctx); err != nil {
		s.logger.Error("initial sweep", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepNow(ctx); err != nil {
				s.logger.Error("scheduled sweep", "error", err)
			}
		}
	}
}
