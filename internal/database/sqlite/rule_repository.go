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

const ruleColumns = `id, name, description, enabled, metric, component, mode, threshold,
	operator, baseline_period, evaluation_window, sensitivity, min_data_points,
	confidence_floor, failure_type, notification_channels, suppression_duration,
	created_at, created_by, last_triggered, trigger_count, false_positive_count, metadata`

// RuleRepository implements repositories.RuleRepository on SQLite.
type RuleRepository struct {
	db *sqlx.DB
}

// NewRuleRepository creates a new RuleRepository.
func NewRuleRepository(db *sqlx.DB) repositories.RuleRepository {
	return &RuleRepository{db: db}
}

// Create persists a new monitoring rule. The rule must already validate.
func (r *RuleRepository) Create(ctx context.Context, rule *types.MonitoringRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	row, err := models.RuleToRow(rule)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO monitoring_rules (` + ruleColumns + `)
		VALUES (:id, :name, :description, :enabled, :metric, :component, :mode, :threshold,
			:operator, :baseline_period, :evaluation_window, :sensitivity, :min_data_points,
			:confidence_floor, :failure_type, :notification_channels, :suppression_duration,
			:created_at, :created_by, :last_triggered, :trigger_count, :false_positive_count, :metadata)
	`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

// Update persists rule changes. The rule must already validate.
func (r *RuleRepository) Update(ctx context.Context, rule *types.MonitoringRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	row, err := models.RuleToRow(rule)
	if err != nil {
		return err
	}

	query := `
		UPDATE monitoring_rules SET
			name = :name, description = :description, enabled = :enabled, metric = :metric,
			component = :component, mode = :mode, threshold = :threshold, operator = :operator,
			baseline_period = :baseline_period, evaluation_window = :evaluation_window,
			sensitivity = :sensitivity, min_data_points = :min_data_points,
			confidence_floor = :confidence_floor, failure_type = :failure_type,
			notification_channels = :notification_channels,
			suppression_duration = :suppression_duration, metadata = :metadata
		WHERE id = :id
	`
	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.Newf(errors.KindNotFound, "rule %s not found", rule.ID)
	}
	return nil
}

// GetByID retrieves a rule by id.
func (r *RuleRepository) GetByID(ctx context.Context, id string) (*types.MonitoringRule, error) {
	var row models.RuleRow
	query := `SELECT ` + ruleColumns + ` FROM monitoring_rules WHERE id = ?`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Newf(errors.KindNotFound, "rule %s not found", id)
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return row.ToRule()
}

// List retrieves rules, optionally only enabled ones.
func (r *RuleRepository) List(ctx context.Context, enabledOnly bool) ([]*types.MonitoringRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM monitoring_rules`
	if enabledOnly {
		query += " WHERE enabled = 1"
	}
	query += " ORDER BY name"

	var rows []models.RuleRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}

	rules := make([]*types.MonitoringRule, 0, len(rows))
	for i := range rows {
		rule, err := rows[i].ToRule()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Delete removes a rule.
func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM monitoring_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.Newf(errors.KindNotFound, "rule %s not found", id)
	}
	return nil
}

// RecordTrigger bumps the trigger bookkeeping after a rule fires.
func (r *RuleRepository) RecordTrigger(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE monitoring_rules SET last_triggered = ?, trigger_count = trigger_count + 1 WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("failed to record rule trigger: %w", err)
	}
	return nil
}
