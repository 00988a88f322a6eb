package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/clinica/import-service/internal/runs"
	"github.com/clinica/import-service/internal/types"
)

func setupRunStore(ctx context.Context, t *testing.T) *RunStore {
	t.Helper()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("imports"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForListeningPort("5432/tcp").WithStartupTimeout(60*time.Second),
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, Connect(ctx, connStr, 5, 1, 0, 0))
	t.Cleanup(Close)

	stat := Stats()
	require.NotNil(t, stat)
	assert.Equal(t, int32(5), stat.MaxConns())

	store := NewRunStore(Pool())
	require.NoError(t, store.Migrate(ctx))
	// idempotent
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestRunStoreLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	ctx := context.Background()
	store := setupRunStore(ctx, t)

	run := &types.ImportRun{
		ID:        "run-1",
		Entity:    "pacientes",
		Filename:  "pacientes.csv",
		Status:    types.RunStatusPending,
		TotalRows: 3,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Create(ctx, run))

	t.Run("Progress", func(t *testing.T) {
		require.NoError(t, store.Start(ctx, run.ID, 3))
		require.NoError(t, store.UpdateProgress(ctx, run.ID, 60))
		require.NoError(t, store.UpdateProgress(ctx, run.ID, 30))

		got, err := store.Get(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, types.RunStatusRunning, got.Status)
		assert.Equal(t, 60, got.Progress)
		assert.NotNil(t, got.StartedAt)
		assert.Nil(t, got.Result)
	})

	t.Run("Complete", func(t *testing.T) {
		result := types.NewBatchResult()
		result.Success = 2
		result.Failed = 1
		result.Errors = append(result.Errors, "Linha 3: Nome é obrigatório")
		require.NoError(t, store.Complete(ctx, run.ID, result))

		got, err := store.Get(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, types.RunStatusCompleted, got.Status)
		assert.Equal(t, 100, got.Progress)
		require.NotNil(t, got.Result)
		assert.Equal(t, 2, got.Result.Success)
		assert.Equal(t, []string{"Linha 3: Nome é obrigatório"}, got.Result.Errors)
		assert.NotNil(t, got.CompletedAt)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, runs.ErrNotFound)
		assert.ErrorIs(t, store.UpdateProgress(ctx, "missing", 10), runs.ErrNotFound)
	})
}

func TestRunStoreListAndSweep(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	ctx := context.Background()
	store := setupRunStore(ctx, t)

	now := time.Now().UTC()
	old := now.Add(-72 * time.Hour)
	seed := []types.ImportRun{
		{ID: "old-done", Entity: "insumos", Filename: "a.csv", Status: types.RunStatusCompleted, CreatedAt: old},
		{ID: "old-running", Entity: "insumos", Filename: "b.csv", Status: types.RunStatusRunning, CreatedAt: old.Add(time.Hour)},
		{ID: "fresh", Entity: "produtos", Filename: "c.csv", Status: types.RunStatusPending, CreatedAt: now},
	}
	for i := range seed {
		require.NoError(t, store.Create(ctx, &seed[i]))
	}

	list, err := store.List(ctx, runs.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "fresh", list[0].ID)

	list, err = store.List(ctx, runs.ListOptions{Entity: "insumos", Status: types.RunStatusRunning})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "old-running", list[0].ID)

	n, err := store.MarkInterrupted(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ids, err := store.DeleteFinishedBefore(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"old-done", "old-running"}, ids)

	list, err = store.List(ctx, runs.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "fresh", list[0].ID)
}
