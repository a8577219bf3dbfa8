package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
	"github.com/vigil-ops/vigil-backend-go/internal/database/models"
	"github.com/vigil-ops/vigil-backend-go/internal/database/repositories"
	"github.com/vigil-ops/vigil-backend-go/pkg/errors"
)

const healthColumns = `id, timestamp, overall_score, component_scores, active_alerts,
	critical_alerts, open_incidents, recent_failures, availability_pct, error_rate_pct,
	mean_response_time, p95_response_time, throughput_per_minute, resource_utilization,
	trends, metadata`

// HealthRepository implements repositories.HealthRepository on SQLite.
// The health series is append-only.
type HealthRepository struct {
	db *sqlx.DB
}

// NewHealthRepository creates a new HealthRepository.
func NewHealthRepository(db *sqlx.DB) repositories.HealthRepository {
	return &HealthRepository{db: db}
}

// Insert appends a snapshot to the series.
func (r *HealthRepository) Insert(ctx context.Context, snapshot *types.SystemHealth) error {
	row, err := models.HealthToRow(snapshot)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO health_snapshots (` + healthColumns + `)
		VALUES (:id, :timestamp, :overall_score, :component_scores, :active_alerts,
			:critical_alerts, :open_incidents, :recent_failures, :availability_pct, :error_rate_pct,
			:mean_response_time, :p95_response_time, :throughput_per_minute, :resource_utilization,
			:trends, :metadata)
	`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to insert health snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot.
func (r *HealthRepository) Latest(ctx context.Context) (*types.SystemHealth, error) {
	var row models.HealthRow
	query := `SELECT ` + healthColumns + ` FROM health_snapshots ORDER BY timestamp DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.KindNotFound, "no health snapshots recorded yet")
		}
		return nil, fmt.Errorf("failed to get latest health snapshot: %w", err)
	}
	return row.ToHealth()
}

// History returns snapshots since the given time, newest first.
func (r *HealthRepository) History(ctx context.Context, since time.Time, limit int) ([]*types.SystemHealth, error) {
	query := `SELECT ` + healthColumns + ` FROM health_snapshots WHERE timestamp >= ? ORDER BY timestamp DESC`
	args := []interface{}{since}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []models.HealthRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list health snapshots: %w", err)
	}

	snapshots := make([]*types.SystemHealth, 0, len(rows))
	for i := range rows {
		snapshot, err := rows[i].ToHealth()
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

// RecentScores returns up to n most recent overall scores, newest first.
func (r *HealthRepository) RecentScores(ctx context.Context, n int) ([]float64, error) {
	if n <= 0 {
		return nil, nil
	}
	var scores []float64
	query := `SELECT overall_score FROM health_snapshots ORDER BY timestamp DESC LIMIT ?`
	if err := r.db.SelectContext(ctx, &scores, query, n); err != nil {
		return nil, fmt.Errorf("failed to load recent health scores: %w", err)
	}
	return scores, nil
}
