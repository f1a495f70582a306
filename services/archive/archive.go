package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"omniversal/pkg/db"
	"omniversal/services/kernel"
)

const (
	DefaultListLimit = 50
	maxListLimit     = 500
)

// Archive persists kernel runs with gorm and reads them back with scany.
// It implements kernel.Recorder.
type Archive struct {
	orm  *gorm.DB
	pool *pgxpool.Pool
}

var _ kernel.Recorder = (*Archive)(nil)

// New creates an archive bound to the provided dependencies.
func New(orm *gorm.DB, pool *pgxpool.Pool) (*Archive, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &Archive{orm: orm, pool: pool}, nil
}

// Open connects to dsn, applies migrations and returns the archive with its
// pool. Callers close the pool.
func Open(ctx context.Context, dsn string) (*Archive, *pgxpool.Pool, error) {
	pool, err := db.Open(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	if _, err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	orm, err := db.Gorm(pool)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("open gorm: %w", err)
	}
	a, err := New(orm, pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return a, pool, nil
}

func (a *Archive) RunStarted(ctx context.Context, runID uuid.UUID, startedAt time.Time) error {
	run := runModel{
		ID:        runID,
		Status:    RunStatusRunning,
		StartedAt: startedAt.UTC(),
		Summary:   toJSONMap(nil),
	}
	if err := a.orm.WithContext(ctx).Create(&run).Error; err != nil {
		return fmt.Errorf("archive run %s: %w", runID, err)
	}
	return nil
}

func (a *Archive) RunFinished(ctx context.Context, runID uuid.UUID, status string, finishedAt time.Time, summary map[string]any) error {
	updates := map[string]any{
		"status":      status,
		"finished_at": finishedAt.UTC(),
		"summary":     toJSONMap(summary),
	}
	res := a.orm.WithContext(ctx).
		Model(&runModel{}).
		Where("id = ?", runID).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("finish run %s: %w", runID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("finish run %s: %w", runID, gorm.ErrRecordNotFound)
	}
	return nil
}

func (a *Archive) SnapshotTaken(ctx context.Context, runID uuid.UUID, snap kernel.DashboardSnapshot) error {
	model := toSnapshotModel(runID, snap)
	if err := a.orm.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("archive snapshot: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (a *Archive) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	err := db.Select(ctx, a.pool, &runs, `
		SELECT id, status, started_at, finished_at, summary
		FROM kernel_runs
		ORDER BY started_at DESC
		LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ListSnapshots returns the most recent snapshots, newest first. A non-nil
// runID restricts the result to that run.
func (a *Archive) ListSnapshots(ctx context.Context, runID uuid.UUID, limit int) ([]Snapshot, error) {
	query := `
		SELECT id, run_id, total_architects, active_layers, total_artifacts, nft_minted,
		       zakat_processed, properties_tokenized, ai_predictions, taken_at
		FROM dashboard_snapshots`
	args := []any{clampLimit(limit)}
	if runID != uuid.Nil {
		query += ` WHERE run_id = $2`
		args = append(args, runID)
	}
	query += ` ORDER BY taken_at DESC LIMIT $1`

	var rows []snapshotRow
	if err := db.Select(ctx, a.pool, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	out := make([]Snapshot, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toSnapshot())
	}
	return out, nil
}

// Ping reports whether the database is reachable.
func (a *Archive) Ping(ctx context.Context) error {
	return db.Ping(ctx, a.pool)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
