package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/assembly-verify/internal/common"
	"github.com/Veraticus/assembly-verify/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRun returns a run function that records how often it is invoked.
func countingRun(calls *int32) RunFunc {
	return func(_ context.Context, key string) (*model.VerificationRun, error) {
		atomic.AddInt32(calls, 1)
		return sampleRun(key, ""), nil
	}
}

func newIdentity(t *testing.T) Identity {
	t.Helper()
	dir := t.TempDir()
	video := filepath.Join(dir, "session.mp4")
	require.NoError(t, os.WriteFile(video, []byte("original"), 0600))

	id, err := NewIdentity(video, filepath.Join(dir, "out"))
	require.NoError(t, err)
	return id
}

func TestIdentity_Key(t *testing.T) {
	a := Identity{VideoPath: "/v/a.mp4", OutputDir: "/out"}
	b := Identity{VideoPath: "/v/b.mp4", OutputDir: "/out"}
	c := Identity{VideoPath: "/v/a.mp4", OutputDir: "/other"}

	assert.Equal(t, a.Key(), a.Key())
	assert.NotEqual(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
	assert.Len(t, a.Key(), 36)
}

func TestNewIdentity_ResolvesAbsolutePaths(t *testing.T) {
	id, err := NewIdentity("session.mp4", "out")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(id.VideoPath))
	assert.True(t, filepath.IsAbs(id.OutputDir))

	_, err = NewIdentity("", "out")
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestRunOrLoad_Idempotent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	id := newIdentity(t)

	var calls int32
	first, cached, err := store.RunOrLoad(ctx, id, countingRun(&calls))
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, id.Key(), first.ID)
	assert.Equal(t, id.OutputDir, first.OutputDir)

	before, err := os.ReadFile(id.ResultPath())
	require.NoError(t, err)

	second, cached, err := store.RunOrLoad(ctx, id, countingRun(&calls))
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	after, err := os.ReadFile(id.ResultPath())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRunOrLoad_StaleVideoReturnsPersistedRun(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	id := newIdentity(t)

	var calls int32
	first, _, err := store.RunOrLoad(ctx, id, countingRun(&calls))
	require.NoError(t, err)

	// Replace the video contents at the same path.
	require.NoError(t, os.WriteFile(id.VideoPath, []byte("a different recording"), 0600))

	second, cached, err := store.RunOrLoad(ctx, id, countingRun(&calls))
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRunOrLoad_Corruption(t *testing.T) {
	tests := []struct {
		corrupt func(t *testing.T, store *SQLiteStorage, id Identity)
		name    string
	}{
		{
			name: "unparseable file",
			corrupt: func(t *testing.T, _ *SQLiteStorage, id Identity) {
				t.Helper()
				require.NoError(t, os.WriteFile(id.ResultPath(), []byte("{not json"), 0600))
			},
		},
		{
			name: "edited file",
			corrupt: func(t *testing.T, _ *SQLiteStorage, id Identity) {
				t.Helper()
				data, err := os.ReadFile(id.ResultPath())
				require.NoError(t, err)
				require.NoError(t, os.WriteFile(id.ResultPath(), append(data, ' '), 0600))
			},
		},
		{
			name: "file removed while indexed",
			corrupt: func(t *testing.T, _ *SQLiteStorage, id Identity) {
				t.Helper()
				require.NoError(t, os.Remove(id.ResultPath()))
			},
		},
		{
			name: "file holds another run",
			corrupt: func(t *testing.T, store *SQLiteStorage, id Identity) {
				t.Helper()
				other := sampleRun("someone-else", id.OutputDir)
				sum, err := writeResult(id.ResultPath(), other)
				require.NoError(t, err)
				_, err = store.db.Exec(`UPDATE runs SET checksum = ? WHERE key = ?`, sum, id.Key())
				require.NoError(t, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, cleanup := createTestStorage(t)
			defer cleanup()
			ctx := context.Background()
			id := newIdentity(t)

			var calls int32
			_, _, err := store.RunOrLoad(ctx, id, countingRun(&calls))
			require.NoError(t, err)

			tt.corrupt(t, store, id)

			_, _, err = store.RunOrLoad(ctx, id, countingRun(&calls))
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrCacheCorruption)

			var corrupt *common.CacheCorruptionError
			require.True(t, errors.As(err, &corrupt))
			assert.Equal(t, id.Key(), corrupt.Key)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "corruption must not trigger recomputation")
		})
	}
}

func TestRunOrLoad_AdoptsUnindexedResult(t *testing.T) {
	id := newIdentity(t)
	ctx := context.Background()

	first, _ := createTestStorage(t)
	var calls int32
	run, _, err := first.RunOrLoad(ctx, id, countingRun(&calls))
	require.NoError(t, err)
	_ = first.Close()

	// A fresh index knows nothing about the run, but the result file is still in place.
	second, cleanup := createTestStorage(t)
	defer cleanup()

	adopted, cached, err := second.RunOrLoad(ctx, id, countingRun(&calls))
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, run, adopted)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	summary, err := second.GetRunSummary(ctx, id.Key())
	require.NoError(t, err)
	assert.Equal(t, id.ResultPath(), summary.ResultPath)
}

func TestRunOrLoad_OutputDirInUse(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	id := newIdentity(t)

	var calls int32
	_, _, err := store.RunOrLoad(ctx, id, countingRun(&calls))
	require.NoError(t, err)

	other, err := NewIdentity(filepath.Join(filepath.Dir(id.VideoPath), "other.mp4"), id.OutputDir)
	require.NoError(t, err)

	_, _, err = store.RunOrLoad(ctx, other, countingRun(&calls))
	assert.ErrorIs(t, err, common.ErrOutputInUse)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRunOrLoad_PipelineErrorPersistsNothing(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	id := newIdentity(t)

	failure := errors.New("source unavailable")
	_, _, err := store.RunOrLoad(ctx, id, func(context.Context, string) (*model.VerificationRun, error) {
		return nil, failure
	})
	assert.ErrorIs(t, err, failure)
	assert.NoFileExists(t, id.ResultPath())

	runs, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunOrLoad_ConcurrentCallersComputeOnce(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	id := newIdentity(t)

	var calls int32
	slow := func(_ context.Context, key string) (*model.VerificationRun, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		return sampleRun(key, ""), nil
	}

	const callers = 8
	results := make([]*model.VerificationRun, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = store.RunOrLoad(ctx, id, slow)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
}

func TestRunOrLoad_CancelledLeaderDoesNotFailOthers(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	id := newIdentity(t)

	started := make(chan struct{})
	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	defer cancelLeader()
	blocked := func(ctx context.Context, _ string) (*model.VerificationRun, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	var leaderErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, leaderErr = store.RunOrLoad(leaderCtx, id, blocked)
	}()
	<-started

	var followerCalls int32
	follower := func(_ context.Context, key string) (*model.VerificationRun, error) {
		atomic.AddInt32(&followerCalls, 1)
		return sampleRun(key, ""), nil
	}

	type result struct {
		run *model.VerificationRun
		err error
	}
	followed := make(chan result, 1)
	go func() {
		run, _, err := store.RunOrLoad(context.Background(), id, follower)
		followed <- result{run: run, err: err}
	}()

	// Let the follower join the in-flight computation before it is cancelled.
	time.Sleep(50 * time.Millisecond)
	cancelLeader()
	<-done
	assert.ErrorIs(t, leaderErr, context.Canceled)

	select {
	case res := <-followed:
		require.NoError(t, res.err)
		assert.Equal(t, id.Key(), res.run.ID)
		assert.Equal(t, int32(1), atomic.LoadInt32(&followerCalls))
	case <-time.After(5 * time.Second):
		t.Fatal("follower did not finish")
	}
}

func TestRunOrLoad_RejectsForeignRunID(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	id := newIdentity(t)

	_, _, err := store.RunOrLoad(context.Background(), id, func(context.Context, string) (*model.VerificationRun, error) {
		return sampleRun("not-the-key", ""), nil
	})
	assert.ErrorIs(t, err, ErrInvalidRun)
}

func TestLoadResult(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	outDir := t.TempDir()
	run := sampleRun("golden", outDir)
	require.NoError(t, store.Save(ctx, run))

	t.Run("by file", func(t *testing.T) {
		loaded, err := LoadResult(ResultPath(outDir))
		require.NoError(t, err)
		assert.Equal(t, run, loaded)
	})

	t.Run("by directory", func(t *testing.T) {
		loaded, err := LoadResult(outDir)
		require.NoError(t, err)
		assert.Equal(t, run, loaded)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := LoadResult(filepath.Join(t.TempDir(), "nope.json"))
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("corrupted", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ResultFileName)
		require.NoError(t, os.WriteFile(path, []byte("[]"), 0600))
		_, err := LoadResult(path)
		assert.ErrorIs(t, err, common.ErrCacheCorruption)
	})
}
