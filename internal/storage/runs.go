package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/assembly-verify/internal/common"
	"github.com/Veraticus/assembly-verify/internal/model"
)

// queryable is satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetRunSummary returns the index entry for a run key.
func (s *SQLiteStorage) GetRunSummary(ctx context.Context, key string) (*model.RunSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(key, "key"); err != nil {
		return nil, err
	}
	return s.getRunSummaryTx(ctx, s.db, key)
}

func (s *SQLiteStorage) getRunSummaryTx(ctx context.Context, q queryable, key string) (*model.RunSummary, error) {
	var summary model.RunSummary
	err := q.QueryRowContext(ctx, `
		SELECT key, video, output_dir, result_path, checksum, frame_count, created_at
		FROM runs
		WHERE key = ?
	`, key).Scan(
		&summary.Key,
		&summary.Video,
		&summary.OutputDir,
		&summary.ResultPath,
		&summary.Checksum,
		&summary.FrameCount,
		&summary.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", key, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &summary, nil
}

func (s *SQLiteStorage) saveRunSummaryTx(ctx context.Context, q queryable, summary model.RunSummary) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO runs (key, video, output_dir, result_path, checksum, frame_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			video = excluded.video,
			output_dir = excluded.output_dir,
			result_path = excluded.result_path,
			checksum = excluded.checksum,
			frame_count = excluded.frame_count,
			created_at = excluded.created_at
	`,
		summary.Key,
		summary.Video,
		summary.OutputDir,
		summary.ResultPath,
		summary.Checksum,
		summary.FrameCount,
		summary.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to index run %s: %w", summary.Key, err)
	}
	return nil
}

// List returns every indexed run, newest first.
func (s *SQLiteStorage) List(ctx context.Context) ([]model.RunSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, video, output_dir, result_path, checksum, frame_count, created_at
		FROM runs
		ORDER BY created_at DESC, key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []model.RunSummary
	for rows.Next() {
		var summary model.RunSummary
		if err := rows.Scan(
			&summary.Key,
			&summary.Video,
			&summary.OutputDir,
			&summary.ResultPath,
			&summary.Checksum,
			&summary.FrameCount,
			&summary.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		summaries = append(summaries, summary)
	}

	return summaries, rows.Err()
}

// DeleteRun removes a run from the index. The result file is left in place.
func (s *SQLiteStorage) DeleteRun(ctx context.Context, key string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(key, "key"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", key, common.ErrNotFound)
	}
	return nil
}
