package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
	"github.com/vigil-ops/vigil-backend-go/internal/database/models"
	"github.com/vigil-ops/vigil-backend-go/internal/database/repositories"
	"github.com/vigil-ops/vigil-backend-go/pkg/errors"
)

const alertColumns = `id, title, description, severity, status, source_failure_id, component,
	metric, triggered_at, triggered_by, acknowledgment_required, acknowledged_at,
	acknowledged_by, resolved_at, resolved_by, resolution_notes, closed_at,
	escalation_level, last_escalated_at, escalation_history, notification_history,
	evidence_count, related_failure_ids, tags, updated_at, metadata`

var activeStatuses = []string{
	string(types.AlertOpen),
	string(types.AlertAcknowledged),
	string(types.AlertInvestigating),
}

// AlertRepository implements repositories.AlertRepository on SQLite.
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository creates a new AlertRepository.
func NewAlertRepository(db *sqlx.DB) repositories.AlertRepository {
	return &AlertRepository{db: db}
}

// Create persists a new alert.
func (r *AlertRepository) Create(ctx context.Context, alert *types.Alert) error {
	row, err := models.AlertToRow(alert)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES (:id, :title, :description, :severity, :status, :source_failure_id, :component,
			:metric, :triggered_at, :triggered_by, :acknowledgment_required, :acknowledged_at,
			:acknowledged_by, :resolved_at, :resolved_by, :resolution_notes, :closed_at,
			:escalation_level, :last_escalated_at, :escalation_history, :notification_history,
			:evidence_count, :related_failure_ids, :tags, :updated_at, :metadata)
	`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// Update persists all mutable alert fields.
func (r *AlertRepository) Update(ctx context.Context, alert *types.Alert) error {
	row, err := models.AlertToRow(alert)
	if err != nil {
		return err
	}

	query := `
		UPDATE alerts SET
			title = :title, description = :description, severity = :severity, status = :status,
			acknowledged_at = :acknowledged_at, acknowledged_by = :acknowledged_by,
			resolved_at = :resolved_at, resolved_by = :resolved_by, resolution_notes = :resolution_notes,
			closed_at = :closed_at, escalation_level = :escalation_level,
			last_escalated_at = :last_escalated_at, escalation_history = :escalation_history,
			notification_history = :notification_history, evidence_count = :evidence_count,
			related_failure_ids = :related_failure_ids, tags = :tags,
			updated_at = :updated_at, metadata = :metadata
		WHERE id = :id
	`
	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.Newf(errors.KindNotFound, "alert %s not found", alert.ID)
	}
	return nil
}

// GetByID retrieves an alert by id.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*types.Alert, error) {
	var row models.AlertRow
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = ?`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Newf(errors.KindNotFound, "alert %s not found", id)
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return row.ToAlert()
}

// List retrieves alerts matching the filter, newest first.
func (r *AlertRepository) List(ctx context.Context, filter repositories.AlertFilter) ([]*types.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE 1=1`
	args := []interface{}{}

	if filter.Component != "" {
		query += " AND component = ?"
		args = append(args, filter.Component)
	}
	if filter.Metric != "" {
		query += " AND metric = ?"
		args = append(args, string(filter.Metric))
	}
	if len(filter.Statuses) > 0 {
		query += " AND status IN (?" + repeat(", ?", len(filter.Statuses)-1) + ")"
		for _, s := range filter.Statuses {
			args = append(args, string(s))
		}
	}
	if len(filter.Severities) > 0 {
		query += " AND severity IN (?" + repeat(", ?", len(filter.Severities)-1) + ")"
		for _, s := range filter.Severities {
			args = append(args, string(s))
		}
	}
	if !filter.Since.IsZero() {
		query += " AND triggered_at >= ?"
		args = append(args, filter.Since)
	}
	if !filter.Until.IsZero() {
		query += " AND triggered_at <= ?"
		args = append(args, filter.Until)
	}
	query += " ORDER BY triggered_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return r.selectAlerts(ctx, query, args...)
}

// ListActive retrieves alerts in an active state, newest first.
func (r *AlertRepository) ListActive(ctx context.Context) ([]*types.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts
		WHERE status IN (?, ?, ?) ORDER BY triggered_at DESC`
	return r.selectAlerts(ctx, query, activeStatuses[0], activeStatuses[1], activeStatuses[2])
}

// FindActiveByKey returns the active alert for a (component, metric) pair,
// or nil when none exists. At most one active alert per pair is invariant.
func (r *AlertRepository) FindActiveByKey(ctx context.Context, component string, metric types.MetricName) (*types.Alert, error) {
	var row models.AlertRow
	query := `SELECT ` + alertColumns + ` FROM alerts
		WHERE component = ? AND metric = ? AND status IN (?, ?, ?)
		ORDER BY triggered_at DESC LIMIT 1`
	err := r.db.GetContext(ctx, &row, query, component, string(metric),
		activeStatuses[0], activeStatuses[1], activeStatuses[2])
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active alert: %w", err)
	}
	return row.ToAlert()
}

func (r *AlertRepository) selectAlerts(ctx context.Context, query string, args ...interface{}) ([]*types.Alert, error) {
	var rows []models.AlertRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	alerts := make([]*types.Alert, 0, len(rows))
	for i := range rows {
		alert, err := rows[i].ToAlert()
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
