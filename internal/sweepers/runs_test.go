package sweepers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinica/import-service/internal/runs"
	"github.com/clinica/import-service/internal/storage"
	"github.com/clinica/import-service/internal/types"
)

func newSweeper(t *testing.T, cfg RunSweeperConfig) (*RunSweeper, runs.Store, storage.Storage) {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	store := runs.NewMemoryStore()
	logger := zerolog.Nop()
	return NewRunSweeper(store, files, &logger, cfg), store, files
}

func TestRecoverOnStartupInterruptsEverythingInFlight(t *testing.T) {
	ctx := context.Background()
	sweeper, store, _ := newSweeper(t, RunSweeperConfig{})

	now := time.Now()
	sweeper.now = func() time.Time { return now }
	require.NoError(t, store.Create(ctx, &types.ImportRun{ID: "p", Status: types.RunStatusPending, CreatedAt: now.Add(-time.Second)}))
	require.NoError(t, store.Create(ctx, &types.ImportRun{ID: "r", Status: types.RunStatusRunning, CreatedAt: now.Add(-time.Minute)}))
	require.NoError(t, store.Create(ctx, &types.ImportRun{ID: "c", Status: types.RunStatusCompleted, CreatedAt: now.Add(-time.Minute)}))

	require.NoError(t, sweeper.RecoverOnStartup(ctx))

	for id, want := range map[string]types.RunStatus{
		"p": types.RunStatusInterrupted,
		"r": types.RunStatusInterrupted,
		"c": types.RunStatusCompleted,
	} {
		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status, id)
	}
}

func TestSweepPurgesOldRunsAndArchives(t *testing.T) {
	ctx := context.Background()
	sweeper, store, files := newSweeper(t, RunSweeperConfig{
		StaleAfter: time.Hour,
		Retention:  24 * time.Hour,
	})

	now := time.Now()
	sweeper.now = func() time.Time { return now }

	require.NoError(t, store.Create(ctx, &types.ImportRun{ID: "old", Status: types.RunStatusCompleted, CreatedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, store.Create(ctx, &types.ImportRun{ID: "stuck", Status: types.RunStatusRunning, CreatedAt: now.Add(-2 * time.Hour)}))
	require.NoError(t, store.Create(ctx, &types.ImportRun{ID: "live", Status: types.RunStatusRunning, CreatedAt: now.Add(-time.Minute)}))

	key := storage.UploadKey("old", "insumos.csv")
	require.NoError(t, files.Put(ctx, key, []byte("nome\n"), nil))

	require.NoError(t, sweeper.Sweep(ctx))

	_, err := store.Get(ctx, "old")
	assert.ErrorIs(t, err, runs.ErrNotFound)

	stuck, err := store.Get(ctx, "stuck")
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusInterrupted, stuck.Status)

	live, err := store.Get(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusRunning, live.Status)

	_, err = files.Get(ctx, key)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestStartStops(t *testing.T) {
	sweeper, _, _ := newSweeper(t, RunSweeperConfig{Interval: time.Millisecond})

	done := make(chan struct{})
	go func() {
		sweeper.Start(context.Background())
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	sweeper.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
