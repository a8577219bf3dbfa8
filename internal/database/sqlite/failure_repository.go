package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vigil-ops/vigil-backend-go/internal/database/models"
	"github.com/vigil-ops/vigil-backend-go/internal/database/repositories"
	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
	"github.com/vigil-ops/vigil-backend-go/pkg/errors"
)

const failureColumns = `id, failure_type, detected_at, detection_method, component, component_id,
	severity_score, confidence, description, root_cause_hint, impact_assessment,
	affected_metrics, baseline_values, current_values, deviation_pct, rule_ids,
	related_failures, mitigation_suggestions, false_positive, false_positive_reason,
	archived_at, metadata`

// FailureRepository implements repositories.FailureRepository on SQLite.
type FailureRepository struct {
	db *sqlx.DB
}

// NewFailureRepository creates a new FailureRepository.
func NewFailureRepository(db *sqlx.DB) repositories.FailureRepository {
	return &FailureRepository{db: db}
}

// Create persists a failure detection.
func (r *FailureRepository) Create(ctx context.Context, failure *types.FailureDetection) error {
	row, err := models.FailureToRow(failure)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO failures (` + failureColumns + `)
		VALUES (:id, :failure_type, :detected_at, :detection_method, :component, :component_id,
			:severity_score, :confidence, :description, :root_cause_hint, :impact_assessment,
			:affected_metrics, :baseline_values, :current_values, :deviation_pct, :rule_ids,
			:related_failures, :mitigation_suggestions, :false_positive, :false_positive_reason,
			:archived_at, :metadata)
	`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to create failure: %w", err)
	}
	return nil
}

// GetByID retrieves a failure by id.
func (r *FailureRepository) GetByID(ctx context.Context, id string) (*types.FailureDetection, error) {
	var row models.FailureRow
	query := `SELECT ` + failureColumns + ` FROM failures WHERE id = ?`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Newf(errors.KindNotFound, "failure %s not found", id)
		}
		return nil, fmt.Errorf("failed to get failure: %w", err)
	}
	return row.ToFailure()
}

// List retrieves failures matching the filter, newest first.
func (r *FailureRepository) List(ctx context.Context, filter repositories.FailureFilter) ([]*types.FailureDetection, error) {
	query := `SELECT ` + failureColumns + ` FROM failures WHERE archived_at IS NULL`
	args := []interface{}{}

	if filter.Component != "" {
		query += " AND component = ?"
		args = append(args, filter.Component)
	}
	if filter.FailureType != "" {
		query += " AND failure_type = ?"
		args = append(args, string(filter.FailureType))
	}
	if !filter.Since.IsZero() {
		query += " AND detected_at >= ?"
		args = append(args, filter.Since)
	}
	if !filter.Until.IsZero() {
		query += " AND detected_at <= ?"
		args = append(args, filter.Until)
	}
	query += " ORDER BY detected_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var rows []models.FailureRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list failures: %w", err)
	}

	failures := make([]*types.FailureDetection, 0, len(rows))
	for i := range rows {
		failure, err := rows[i].ToFailure()
		if err != nil {
			return nil, err
		}
		failures = append(failures, failure)
	}
	return failures, nil
}

// MarkFalsePositive flags a failure as a false positive.
func (r *FailureRepository) MarkFalsePositive(ctx context.Context, id, reason string) error {
	query := `UPDATE failures SET false_positive = 1, false_positive_reason = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, reason, id)
	if err != nil {
		return fmt.Errorf("failed to mark false positive: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.Newf(errors.KindNotFound, "failure %s not found", id)
	}
	return nil
}

// SetRelated replaces a failure's related-failure back-references.
func (r *FailureRepository) SetRelated(ctx context.Context, id string, relatedIDs []string) error {
	related := "[]"
	if len(relatedIDs) > 0 {
		related = `["` + strings.Join(relatedIDs, `","`) + `"]`
	}
	query := `UPDATE failures SET related_failures = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, related, id); err != nil {
		return fmt.Errorf("failed to set related failures: %w", err)
	}
	return nil
}

// Archive stamps failures detected before olderThan. Archived failures
// drop out of listings but are never deleted.
func (r *FailureRepository) Archive(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `UPDATE failures SET archived_at = ? WHERE detected_at < ? AND archived_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, time.Now(), olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to archive failures: %w", err)
	}
	return result.RowsAffected()
}
