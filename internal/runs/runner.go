package runs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/clinica/import-service/internal/entities"
	"github.com/clinica/import-service/internal/importer"
	"github.com/clinica/import-service/internal/metrics"
	"github.com/clinica/import-service/internal/storage"
	"github.com/clinica/import-service/internal/types"
)

// CoordinatorFactory builds the coordinator for an entity
type CoordinatorFactory func(schema *entities.Schema) *importer.Coordinator

// RunnerConfig configures a Runner
type RunnerConfig struct {
	Store          Store
	Files          storage.Storage
	NewCoordinator CoordinatorFactory
	ReadOptions    importer.ReadOptions
	// MaxConcurrent bounds runs executing at once; others wait as pending
	MaxConcurrent int64
}

// Runner executes uploads in the background and records their progress
type Runner struct {
	store          Store
	files          storage.Storage
	newCoordinator CoordinatorFactory
	readOpts       importer.ReadOptions
	sem            *semaphore.Weighted
	metrics        *metrics.Recorder

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner creates a runner
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		store:          cfg.Store,
		files:          cfg.Files,
		newCoordinator: cfg.NewCoordinator,
		readOpts:       cfg.ReadOptions,
		sem:            semaphore.NewWeighted(cfg.MaxConcurrent),
		metrics:        metrics.NewRecorder(),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Submit parses the upload, records a pending run and starts it in the
// background. File format and size problems are returned synchronously
// and no run is created for them.
func (r *Runner) Submit(ctx context.Context, schema *entities.Schema, filename string, content []byte) (*types.ImportRun, error) {
	coordinator := r.newCoordinator(schema)

	rows, err := importer.ReadFile(filename, content, r.readOpts)
	if err != nil {
		return nil, err
	}
	if err := importer.CheckRows(rows, coordinator.MaxRows()); err != nil {
		return nil, err
	}

	run := &types.ImportRun{
		ID:        uuid.NewString(),
		Entity:    schema.Name,
		Filename:  filename,
		Status:    types.RunStatusPending,
		TotalRows: len(rows),
		CreatedAt: time.Now(),
	}
	if err := r.store.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	if r.files != nil {
		meta := &storage.Metadata{
			ContentType:  "text/csv",
			OriginalName: filename,
			Entity:       schema.Name,
			RunID:        run.ID,
			UploadedAt:   run.CreatedAt,
		}
		if ft, _ := types.DetectFileType(filename); ft == types.FileTypeXLSX {
			meta.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		}
		if err := r.files.Put(ctx, storage.UploadKey(run.ID, filename), content, meta); err != nil {
			// archive is best effort
			log.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to archive upload")
		}
	}

	r.wg.Add(1)
	go r.execute(run.ID, coordinator, rows)

	return run, nil
}

func (r *Runner) execute(runID string, coordinator *importer.Coordinator, rows []types.RawRow) {
	defer r.wg.Done()

	entity := coordinator.Schema().Name
	logger := log.With().Str("run_id", runID).Str("entity", entity).Logger()

	if err := r.sem.Acquire(r.ctx, 1); err != nil {
		logger.Warn().Err(err).Msg("Run abandoned before start")
		return
	}
	defer r.sem.Release(1)

	// store writes must outlive a cancelled run context
	storeCtx := context.WithoutCancel(r.ctx)

	if err := r.store.Start(storeCtx, runID, len(rows)); err != nil {
		logger.Error().Err(err).Msg("Failed to mark run as running")
		return
	}

	start := time.Now()
	lastProgress := 0
	result, err := coordinator.SubmitAll(r.ctx, rows, func(p int) {
		if p == lastProgress {
			return
		}
		lastProgress = p
		if err := r.store.UpdateProgress(storeCtx, runID, p); err != nil {
			logger.Warn().Err(err).Int("progress", p).Msg("Failed to record progress")
		}
	})

	if err != nil {
		r.metrics.RecordRun(entity, string(types.RunStatusFailed), time.Since(start))
		if ferr := r.store.Fail(storeCtx, runID, err.Error(), result); ferr != nil {
			logger.Error().Err(ferr).Msg("Failed to record run failure")
		}
		logger.Error().Err(err).Msg("Import run failed")
		return
	}

	if err := r.store.Complete(storeCtx, runID, result); err != nil {
		logger.Error().Err(err).Msg("Failed to record run completion")
		return
	}
	logger.Info().
		Int("success", result.Success).
		Int("failed", result.Failed).
		Msg("Import run completed")
}

// Wait blocks until every started run has finished
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown cancels running imports and waits for them until ctx expires.
// Cancelled runs are recorded as failed with the partial tally.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("runner shutdown: %w", ctx.Err())
	}
}
