package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ignite/smart-affiliate/internal/discovery"
)

var _ discovery.RunHistory = (*RunRepo)(nil)

// DefaultRunLimit caps RecentRuns when no limit is given.
const DefaultRunLimit = 20

// RunRepo stores run reports in discovery_runs.
type RunRepo struct{ db *sql.DB }

// NewRunRepo creates a Postgres-backed run history.
func NewRunRepo(db *sql.DB) *RunRepo { return &RunRepo{db: db} }

// Record upserts a run report by run ID.
func (r *RunRepo) Record(ctx context.Context, report *discovery.RunReport) error {
	sources := report.Sources
	if sources == nil {
		sources = []discovery.SourceStatus{}
	}
	srcJSON, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("marshal run sources: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO discovery_runs (run_id, started_at, finished_at, products, dropped, snapshot_uri, sources)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			products = EXCLUDED.products,
			dropped = EXCLUDED.dropped,
			snapshot_uri = EXCLUDED.snapshot_uri,
			sources = EXCLUDED.sources`,
		report.RunID, report.StartedAt, report.FinishedAt, report.Products, report.Dropped,
		report.SnapshotURI, srcJSON,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", report.RunID, err)
	}
	return nil
}

// RecentRuns returns up to limit reports, newest first.
func (r *RunRepo) RecentRuns(ctx context.Context, limit int) ([]discovery.RunReport, error) {
	if limit <= 0 {
		limit = DefaultRunLimit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, started_at, finished_at, products, dropped, snapshot_uri, sources
		FROM discovery_runs
		ORDER BY started_at DESC, run_id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []discovery.RunReport{}
	for rows.Next() {
		var rep discovery.RunReport
		var srcJSON []byte
		if err := rows.Scan(&rep.RunID, &rep.StartedAt, &rep.FinishedAt, &rep.Products, &rep.Dropped,
			&rep.SnapshotURI, &srcJSON); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := unmarshalIfSet(srcJSON, &rep.Sources); err != nil {
			return nil, fmt.Errorf("decode run sources: %w", err)
		}
		runs = append(runs, rep)
	}
	return runs, rows.Err()
}
