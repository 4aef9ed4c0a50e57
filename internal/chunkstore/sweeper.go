package chunkstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/lootsift/lootsift/internal/config"
)

// Sweeper periodically purges orphaned chunk sets, independent of any
// running job.
type Sweeper struct {
	store *Store
	cfg   config.ConfigGetter
	log   *slog.Logger
}

// NewSweeper creates a sweeper over the given store.
func NewSweeper(store *Store, cfg config.ConfigGetter) *Sweeper {
	return &Sweeper{
		store: store,
		cfg:   cfg,
		log:   slog.Default().With("component", "chunk-sweeper"),
	}
}

// Start runs the sweep loop until the context is cancelled. The retention
// window is re-read from settings on every pass.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce executes a single sweep pass.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	maxAge := time.Duration(s.cfg().Upload.TempCleanupHours) * time.Hour
	removed := s.store.SweepExpired(ctx, maxAge)
	s.log.Debug("chunk sweep pass finished", "removed", removed)
	return removed
}
