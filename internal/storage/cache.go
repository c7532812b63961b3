package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/assembly-verify/internal/common"
	"github.com/Veraticus/assembly-verify/internal/model"
	"github.com/google/uuid"
)

// runNamespace scopes identity keys so they never collide with other UUIDv5 users.
var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/Veraticus/assembly-verify/runs"))

// Identity names a run by its input video and output directory. Video contents are not
// part of the identity: replacing the file at the same path reuses the earlier run.
type Identity struct {
	VideoPath string
	OutputDir string
}

// NewIdentity builds an identity from absolute forms of both paths.
func NewIdentity(videoPath, outputDir string) (Identity, error) {
	if err := validateString(videoPath, "videoPath"); err != nil {
		return Identity{}, err
	}
	if err := validateString(outputDir, "outputDir"); err != nil {
		return Identity{}, err
	}

	video, err := filepath.Abs(videoPath)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to resolve video path: %w", err)
	}
	out, err := filepath.Abs(outputDir)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to resolve output directory: %w", err)
	}
	return Identity{VideoPath: video, OutputDir: out}, nil
}

// Key returns the deterministic run key for the identity.
func (id Identity) Key() string {
	return uuid.NewSHA1(runNamespace, []byte(id.VideoPath+"\x00"+id.OutputDir)).String()
}

// ResultPath returns where the identity's run is persisted.
func (id Identity) ResultPath() string {
	return ResultPath(id.OutputDir)
}

// RunFunc computes a run for a key. The returned run's ID is set to the key when empty.
type RunFunc func(ctx context.Context, key string) (*model.VerificationRun, error)

type runOutcome struct {
	run    *model.VerificationRun
	cached bool
}

// RunOrLoad returns the persisted run for the identity, or computes, persists and indexes
// it. Concurrent callers for one identity share a single computation, which runs with the
// ctx and fn of the caller that started it; if that caller is cancelled, the others retry
// with their own. The returned run is always the persisted form. The boolean reports whether an existing run was reused.
func (s *SQLiteStorage) RunOrLoad(ctx context.Context, id Identity, fn RunFunc) (*model.VerificationRun, bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, false, err
	}
	if fn == nil {
		return nil, false, fmt.Errorf("%w: run function", ErrNilParameter)
	}
	if err := validateString(id.VideoPath, "videoPath"); err != nil {
		return nil, false, err
	}
	if err := validateString(id.OutputDir, "outputDir"); err != nil {
		return nil, false, err
	}

	key := id.Key()
	var (
		v   any
		err error
	)
	for {
		var shared bool
		v, err, shared = s.group.Do(key, func() (any, error) {
			lock := s.keyLock(key)
			lock.Lock()
			defer lock.Unlock()
			return s.runOrLoadLocked(ctx, id, key, fn)
		})
		// The shared computation runs under the first caller's context. When that caller
		// is cancelled, callers that are still live start over instead of inheriting it.
		if shared && isContextErr(err) && ctx.Err() == nil {
			slog.Debug("Shared run was cancelled by another caller, retrying", "key", key)
			continue
		}
		break
	}
	if err != nil {
		return nil, false, err
	}

	outcome, ok := v.(runOutcome)
	if !ok {
		return nil, false, fmt.Errorf("unexpected run outcome type %T", v)
	}
	return outcome.run, outcome.cached, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (s *SQLiteStorage) runOrLoadLocked(ctx context.Context, id Identity, key string, fn RunFunc) (runOutcome, error) {
	run, err := s.lookup(ctx, id, key)
	if err == nil {
		slog.Info("Reusing persisted run", "key", key, "path", id.ResultPath())
		return runOutcome{run: run, cached: true}, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return runOutcome{}, err
	}

	slog.Info("Computing run", "key", key, "video", id.VideoPath)
	computed, err := fn(ctx, key)
	if err != nil {
		return runOutcome{}, err
	}
	if computed == nil {
		return runOutcome{}, fmt.Errorf("%w: run function returned no run", ErrNilParameter)
	}

	if computed.ID == "" {
		computed.ID = key
	}
	if computed.ID != key {
		return runOutcome{}, fmt.Errorf("%w: run ID %s does not match key %s", ErrInvalidRun, computed.ID, key)
	}
	if computed.Video == "" {
		computed.Video = id.VideoPath
	}
	computed.OutputDir = id.OutputDir
	if computed.CreatedAt.IsZero() {
		computed.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	if err := s.save(ctx, computed); err != nil {
		return runOutcome{}, err
	}

	persisted, err := s.load(ctx, key)
	if err != nil {
		return runOutcome{}, err
	}
	return runOutcome{run: persisted}, nil
}

// lookup finds an existing run for the identity. An unindexed result file written for the
// same key is adopted into the index; one written for another key is refused.
func (s *SQLiteStorage) lookup(ctx context.Context, id Identity, key string) (*model.VerificationRun, error) {
	run, err := s.load(ctx, key)
	if err == nil || !errors.Is(err, common.ErrNotFound) {
		return run, err
	}

	path := id.ResultPath()
	run, sum, err := readResult(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("run %s: %w", key, common.ErrNotFound)
	}
	if err != nil {
		return nil, withKey(err, key)
	}

	if run.ID != key {
		return nil, fmt.Errorf("%w: %s belongs to run %s (video %s)", common.ErrOutputInUse, path, run.ID, run.Video)
	}

	slog.Warn("Indexing unindexed run", "key", key, "path", path)
	if err := s.saveRunSummaryTx(ctx, s.db, summarize(run, path, sum)); err != nil {
		return nil, err
	}
	return run, nil
}

// Load returns the indexed run for a key after verifying it against the index.
func (s *SQLiteStorage) Load(ctx context.Context, key string) (*model.VerificationRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(key, "key"); err != nil {
		return nil, err
	}
	return s.load(ctx, key)
}

func (s *SQLiteStorage) load(ctx context.Context, key string) (*model.VerificationRun, error) {
	summary, err := s.getRunSummaryTx(ctx, s.db, key)
	if err != nil {
		return nil, err
	}

	run, sum, err := readResult(summary.ResultPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &common.CacheCorruptionError{Path: summary.ResultPath, Key: key, Err: fmt.Errorf("indexed result file is missing: %w", err)}
		}
		return nil, withKey(err, key)
	}
	if sum != summary.Checksum {
		return nil, &common.CacheCorruptionError{
			Path: summary.ResultPath,
			Key:  key,
			Err:  fmt.Errorf("checksum %s does not match index %s", sum, summary.Checksum),
		}
	}
	if run.ID != key {
		return nil, &common.CacheCorruptionError{
			Path: summary.ResultPath,
			Key:  key,
			Err:  fmt.Errorf("file holds run %s", run.ID),
		}
	}
	return run, nil
}

// Save persists and indexes a run under its ID, replacing any earlier one.
func (s *SQLiteStorage) Save(ctx context.Context, run *model.VerificationRun) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRun(run); err != nil {
		return err
	}

	lock := s.keyLock(run.ID)
	lock.Lock()
	defer lock.Unlock()
	return s.save(ctx, run)
}

func (s *SQLiteStorage) save(ctx context.Context, run *model.VerificationRun) error {
	if err := validateRun(run); err != nil {
		return err
	}

	path := ResultPath(run.OutputDir)
	sum, err := writeResult(path, run)
	if err != nil {
		return err
	}

	if err := s.saveRunSummaryTx(ctx, s.db, summarize(run, path, sum)); err != nil {
		return err
	}

	slog.Debug("Persisted run", "key", run.ID, "path", path, "checksum", sum)
	return nil
}

func summarize(run *model.VerificationRun, path, sum string) model.RunSummary {
	return model.RunSummary{
		Key:        run.ID,
		Video:      run.Video,
		OutputDir:  run.OutputDir,
		ResultPath: path,
		Checksum:   sum,
		FrameCount: len(run.Frames),
		CreatedAt:  run.CreatedAt,
	}
}

// withKey attaches the run key to a corruption error.
func withKey(err error, key string) error {
	var corrupt *common.CacheCorruptionError
	if errors.As(err, &corrupt) && corrupt.Key == "" {
		corrupt.Key = key
	}
	return err
}
