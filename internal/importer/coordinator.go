// Package importer submits normalized rows to the clinic backend, one at a
// time, and keeps the running tally of an upload.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/clinica/import-service/internal/backend"
	"github.com/clinica/import-service/internal/entities"
	"github.com/clinica/import-service/internal/http/ratelimit"
	"github.com/clinica/import-service/internal/metrics"
	"github.com/clinica/import-service/internal/telemetry"
	"github.com/clinica/import-service/internal/types"
)

const (
	DefaultMaxRows        = 1000
	DefaultBatchSize      = 10
	DefaultMaxErrors      = 20
	DefaultRefreshDelay   = time.Second
	DefaultRefreshRetries = 3

	// submissionCeiling is the progress reported once every row is sent;
	// the remainder is reserved for finalization.
	submissionCeiling = 90
)

// API is the subset of the backend client the coordinator needs
type API interface {
	Create(ctx context.Context, path string, payload any) error
	List(ctx context.Context, path string) ([]backend.Item, error)
}

// ProgressFunc receives a percentage in [0, 100]. Calls are monotonic.
type ProgressFunc func(percent int)

// Options tunes a Coordinator
type Options struct {
	MaxRows        int
	BatchSize      int
	MaxErrors      int
	RefreshDelay   time.Duration
	RefreshRetries int
	// OnRefresh receives the reloaded list after a successful upload
	OnRefresh func(items []backend.Item)
	Now       func() time.Time
}

// DefaultOptions returns the production limits
func DefaultOptions() Options {
	return Options{
		MaxRows:        DefaultMaxRows,
		BatchSize:      DefaultBatchSize,
		MaxErrors:      DefaultMaxErrors,
		RefreshDelay:   DefaultRefreshDelay,
		RefreshRetries: DefaultRefreshRetries,
		Now:            time.Now,
	}
}

// Coordinator drives one entity's uploads
type Coordinator struct {
	schema  *entities.Schema
	api     API
	opts    Options
	metrics *metrics.Recorder
}

// NewCoordinator creates a coordinator. Zero option fields take defaults.
func NewCoordinator(schema *entities.Schema, api API, opts Options) *Coordinator {
	def := DefaultOptions()
	if opts.MaxRows <= 0 {
		opts.MaxRows = def.MaxRows
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = def.MaxErrors
	}
	if opts.RefreshDelay <= 0 {
		opts.RefreshDelay = def.RefreshDelay
	}
	if opts.RefreshRetries <= 0 {
		opts.RefreshRetries = def.RefreshRetries
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	return &Coordinator{
		schema:  schema,
		api:     api,
		opts:    opts,
		metrics: metrics.NewRecorder(),
	}
}

// Schema returns the entity the coordinator imports
func (c *Coordinator) Schema() *entities.Schema {
	return c.schema
}

// Upload runs a whole upload inside session: parse, submit, refresh.
// ErrBusy is returned when the session already runs an upload.
func (c *Coordinator) Upload(ctx context.Context, session *Session, filename string, content []byte, opts ReadOptions, onProgress ProgressFunc) (*types.BatchResult, error) {
	if err := session.Begin(filename); err != nil {
		return nil, err
	}

	var result *types.BatchResult
	defer func() { session.finish(result) }()

	rows, err := ReadFile(filename, content, opts)
	if err != nil {
		return nil, err
	}

	session.enter(StateSubmitting)
	result, err = c.submitAll(ctx, rows, func(p int) {
		session.setProgress(p)
		if onProgress != nil {
			onProgress(p)
		}
	}, func() { session.enter(StateFinalizing) })
	return result, err
}

// CheckRows rejects empty uploads and uploads above maxRows
func CheckRows(rows []types.RawRow, maxRows int) error {
	if len(rows) == 0 {
		return &FileFormatError{Reason: "arquivo vazio ou sem linhas de dados"}
	}
	if len(rows) > maxRows {
		return &SizeLimitError{Rows: len(rows), Max: maxRows}
	}
	return nil
}

// MaxRows returns the configured row limit
func (c *Coordinator) MaxRows() int {
	return c.opts.MaxRows
}

// SubmitAll validates and submits rows sequentially. Row-level problems are
// recorded in the result and never returned as errors. The returned error
// is a *SizeLimitError, a *FileFormatError or the context error; on context
// cancellation the partial tally is returned alongside it.
func (c *Coordinator) SubmitAll(ctx context.Context, rows []types.RawRow, onProgress ProgressFunc) (*types.BatchResult, error) {
	return c.submitAll(ctx, rows, onProgress, nil)
}

func (c *Coordinator) submitAll(ctx context.Context, rows []types.RawRow, onProgress ProgressFunc, onFinalize func()) (*types.BatchResult, error) {
	if err := CheckRows(rows, c.opts.MaxRows); err != nil {
		return nil, err
	}
	if onProgress == nil {
		onProgress = func(int) {}
	}

	ctx, span := telemetry.Tracer().Start(ctx, "importer.SubmitAll")
	defer span.End()
	span.SetAttributes(
		attribute.String("import.entity", c.schema.Name),
		attribute.Int("import.rows", len(rows)),
	)

	c.metrics.RecordFileRows(len(rows))
	c.metrics.IncrementActiveRuns()
	defer c.metrics.DecrementActiveRuns()

	start := time.Now()
	result := types.NewBatchResult()
	total := len(rows)
	now := c.opts.Now()

	log.Info().
		Str("entity", c.schema.Name).
		Int("rows", total).
		Msg("Starting import")

	for batchStart := 0; batchStart < total; batchStart += c.opts.BatchSize {
		batchEnd := min(batchStart+c.opts.BatchSize, total)

		for pos := batchStart; pos < batchEnd; pos++ {
			if err := ctx.Err(); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "cancelled")
				log.Warn().Err(err).Int("processed", result.Processed()).Msg("Import cancelled")
				return result, err
			}
			c.processRow(ctx, rows[pos], types.RowIndexFor(pos), now, result)
		}

		onProgress(min(submissionCeiling, result.Processed()*submissionCeiling/total))
	}

	if onFinalize != nil {
		onFinalize()
	}
	onProgress(100)

	if result.Success > 0 {
		if err := c.refresh(ctx); err != nil {
			result.RefreshFailed = true
			c.metrics.RecordRefreshFailure(c.schema.Name)
			log.Warn().Err(err).Str("entity", c.schema.Name).Msg("List refresh failed after upload")
		}
	}

	span.SetAttributes(
		attribute.Int("import.success", result.Success),
		attribute.Int("import.failed", result.Failed),
	)
	c.metrics.RecordRun(c.schema.Name, string(types.RunStatusCompleted), time.Since(start))

	log.Info().
		Str("entity", c.schema.Name).
		Int("success", result.Success).
		Int("failed", result.Failed).
		Bool("truncated", result.Truncated).
		Dur("duration", time.Since(start)).
		Msg("Import finished")

	return result, nil
}

func (c *Coordinator) processRow(ctx context.Context, row types.RawRow, rowIndex int, now time.Time, result *types.BatchResult) {
	out := c.schema.NormalizeAt(row, rowIndex, now)
	if out.Rejected() {
		c.metrics.RecordRow(c.schema.Name, "rejected")
		c.fail(result, rowIndex, out.Rejection.Reason)
		return
	}

	note, err := c.submit(ctx, out.Payload)
	if err != nil {
		c.metrics.RecordRow(c.schema.Name, "failed")
		log.Debug().Int("row", rowIndex).Str("record", out.Payload.Label()).Err(err).Msg("Row submission failed")
		c.fail(result, rowIndex, err.Error())
		return
	}

	c.metrics.RecordRow(c.schema.Name, "success")
	result.Success++
	if note != "" {
		result.Notes = append(result.Notes, types.FormatRowMessage(rowIndex, note))
	}
}

// fail counts a failed row and records its message while under the cap
func (c *Coordinator) fail(result *types.BatchResult, rowIndex int, msg string) {
	result.Failed++
	if len(result.Errors) < c.opts.MaxErrors {
		result.Errors = append(result.Errors, types.FormatRowMessage(rowIndex, msg))
		return
	}
	result.Truncated = true
}

// submit posts one payload. When the backend rejects it with a message
// matching a conflict rule for a field present in the payload, the payload
// is resent once without that field. The returned note is non-empty when a
// retry succeeded under a rule that wants the drop reported.
func (c *Coordinator) submit(ctx context.Context, payload entities.Payload) (string, error) {
	err := c.api.Create(ctx, c.schema.CreatePath, payload)
	if err == nil {
		return "", nil
	}
	msg := messageOf(err)
	log.Debug().Str("entity", c.schema.Name).Str("error", describeForLog(err)).Msg("Backend rejected record")

	for _, rule := range c.schema.ConflictRules {
		if !payload.Has(rule.Field) || !rule.Matches(msg) {
			continue
		}

		log.Debug().Str("field", rule.Field).Str("reason", msg).Msg("Conflict on optional field, retrying without it")
		retryErr := c.api.Create(ctx, c.schema.CreatePath, payload.Without(rule.Field))
		c.metrics.RecordConflictRetry(c.schema.Name, rule.Field, retryErr == nil)
		if retryErr == nil {
			return rule.Note, nil
		}
		return "", fmt.Errorf("%s; nova tentativa sem %s falhou: %s", msg, rule.Field, messageOf(retryErr))
	}

	return "", errors.New(msg)
}

// refresh reloads the entity list after RefreshDelay, retrying spaced by
// the same delay
func (c *Coordinator) refresh(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= c.opts.RefreshRetries; attempt++ {
		if err := ratelimit.Sleep(ctx, c.opts.RefreshDelay); err != nil {
			return err
		}

		items, err := c.api.List(ctx, c.schema.ListPath)
		if err == nil {
			if c.opts.OnRefresh != nil {
				c.opts.OnRefresh(items)
			}
			return nil
		}
		lastErr = err
		log.Debug().Err(err).Int("attempt", attempt).Msg("List refresh attempt failed")
	}
	return fmt.Errorf("list refresh failed after %d attempts: %w", c.opts.RefreshRetries, lastErr)
}
