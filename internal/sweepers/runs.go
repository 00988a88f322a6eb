package sweepers

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinica/import-service/internal/runs"
	"github.com/clinica/import-service/internal/storage"
)

// RunSweeper periodically interrupts stale runs and purges old ones
type RunSweeper struct {
	store      runs.Store
	files      storage.Storage
	logger     *zerolog.Logger
	interval   time.Duration
	staleAfter time.Duration
	retention  time.Duration
	stopChan   chan struct{}
	now        func() time.Time
}

// RunSweeperConfig configures a RunSweeper
type RunSweeperConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	// Retention of zero keeps finished runs forever
	Retention time.Duration
}

// NewRunSweeper creates a new sweeper for import run maintenance
func NewRunSweeper(store runs.Store, files storage.Storage, logger *zerolog.Logger, cfg RunSweeperConfig) *RunSweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	return &RunSweeper{
		store:      store,
		files:      files,
		logger:     logger,
		interval:   cfg.Interval,
		staleAfter: cfg.StaleAfter,
		retention:  cfg.Retention,
		stopChan:   make(chan struct{}),
		now:        time.Now,
	}
}

// RecoverOnStartup marks every run left pending or running by a previous
// process as interrupted. Call it before the runner accepts uploads.
func (s *RunSweeper) RecoverOnStartup(ctx context.Context) error {
	n, err := s.store.MarkInterrupted(ctx, s.now())
	if err != nil {
		return fmt.Errorf("failed to recover runs: %w", err)
	}
	if n > 0 {
		s.logger.Warn().Int64("interrupted", n).Msg("Marked orphaned import runs as interrupted")
	}
	return nil
}

// Start begins the periodic sweep
func (s *RunSweeper) Start(ctx context.Context) {
	s.logger.Info().
		Dur("interval", s.interval).
		Dur("stale_after", s.staleAfter).
		Dur("retention", s.retention).
		Msg("Starting run sweeper")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Run sweeper stopping (context cancelled)")
			return
		case <-s.stopChan:
			s.logger.Info().Msg("Run sweeper stopping (stop signal)")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Run sweep failed")
			}
		}
	}
}

// Stop signals the sweeper to stop
func (s *RunSweeper) Stop() {
	close(s.stopChan)
}

// Sweep runs one maintenance pass
func (s *RunSweeper) Sweep(ctx context.Context) error {
	s.logger.Debug().Msg("Running import run sweep")
	now := s.now()

	if s.staleAfter > 0 {
		n, err := s.store.MarkInterrupted(ctx, now.Add(-s.staleAfter))
		if err != nil {
			return fmt.Errorf("failed to mark stale runs: %w", err)
		}
		if n > 0 {
			s.logger.Warn().Int64("interrupted", n).Msg("Marked stale import runs as interrupted")
		}
	}

	if s.retention <= 0 {
		return nil
	}

	ids, err := s.store.DeleteFinishedBefore(ctx, now.Add(-s.retention))
	if err != nil {
		return fmt.Errorf("failed to purge runs: %w", err)
	}

	removed := 0
	if s.files != nil {
		for _, id := range ids {
			n, err := storage.DeletePrefix(ctx, s.files, storage.UploadPrefix(id))
			if err != nil {
				s.logger.Warn().Err(err).Str("run_id", id).Msg("Failed to remove archived upload")
				continue
			}
			removed += n
		}
	}

	if len(ids) > 0 {
		s.logger.Info().
			Int("runs", len(ids)).
			Int("files", removed).
			Msg("Purged old import runs")
	}
	return nil
}
