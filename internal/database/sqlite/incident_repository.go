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

const incidentColumns = `id, title, description, status, severity, priority, created_at,
	created_by, assigned_to, commander, affected_services, affected_users, business_impact,
	related_alerts, related_failures, timeline, resolution_steps, root_cause,
	lessons_learned, post_mortem_url, estimated_resolution, actual_resolution,
	merged_into, updated_at, metadata`

var openStatuses = []string{
	string(types.IncidentDetected),
	string(types.IncidentTriaging),
	string(types.IncidentInvestigating),
	string(types.IncidentMitigating),
}

// IncidentRepository implements repositories.IncidentRepository on SQLite.
type IncidentRepository struct {
	db *sqlx.DB
}

// NewIncidentRepository creates a new IncidentRepository.
func NewIncidentRepository(db *sqlx.DB) repositories.IncidentRepository {
	return &IncidentRepository{db: db}
}

// Create persists a new incident.
func (r *IncidentRepository) Create(ctx context.Context, incident *types.Incident) error {
	row, err := models.IncidentToRow(incident)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO incidents (` + incidentColumns + `)
		VALUES (:id, :title, :description, :status, :severity, :priority, :created_at,
			:created_by, :assigned_to, :commander, :affected_services, :affected_users, :business_impact,
			:related_alerts, :related_failures, :timeline, :resolution_steps, :root_cause,
			:lessons_learned, :post_mortem_url, :estimated_resolution, :actual_resolution,
			:merged_into, :updated_at, :metadata)
	`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}
	return nil
}

// Update persists all mutable incident fields.
func (r *IncidentRepository) Update(ctx context.Context, incident *types.Incident) error {
	row, err := models.IncidentToRow(incident)
	if err != nil {
		return err
	}

	query := `
		UPDATE incidents SET
			title = :title, description = :description, status = :status, severity = :severity,
			priority = :priority, assigned_to = :assigned_to, commander = :commander,
			affected_services = :affected_services, affected_users = :affected_users,
			business_impact = :business_impact, related_alerts = :related_alerts,
			related_failures = :related_failures, timeline = :timeline,
			resolution_steps = :resolution_steps, root_cause = :root_cause,
			lessons_learned = :lessons_learned, post_mortem_url = :post_mortem_url,
			estimated_resolution = :estimated_resolution, actual_resolution = :actual_resolution,
			merged_into = :merged_into, updated_at = :updated_at, metadata = :metadata
		WHERE id = :id
	`
	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to update incident: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.Newf(errors.KindNotFound, "incident %s not found", incident.ID)
	}
	return nil
}

// GetByID retrieves an incident by id.
func (r *IncidentRepository) GetByID(ctx context.Context, id string) (*types.Incident, error) {
	var row models.IncidentRow
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = ?`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Newf(errors.KindNotFound, "incident %s not found", id)
		}
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}
	return row.ToIncident()
}

// List retrieves incidents matching the filter, newest first.
func (r *IncidentRepository) List(ctx context.Context, filter repositories.IncidentFilter) ([]*types.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE 1=1`
	args := []interface{}{}

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
		query += " AND created_at >= ?"
		args = append(args, filter.Since)
	}
	if !filter.Until.IsZero() {
		query += " AND created_at <= ?"
		args = append(args, filter.Until)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return r.selectIncidents(ctx, query, args...)
}

// ListOpen retrieves incidents still counting against system health.
func (r *IncidentRepository) ListOpen(ctx context.Context) ([]*types.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents
		WHERE status IN (?, ?, ?, ?) ORDER BY created_at DESC`
	return r.selectIncidents(ctx, query,
		openStatuses[0], openStatuses[1], openStatuses[2], openStatuses[3])
}

func (r *IncidentRepository) selectIncidents(ctx context.Context, query string, args ...interface{}) ([]*types.Incident, error) {
	var rows []models.IncidentRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	incidents := make([]*types.Incident, 0, len(rows))
	for i := range rows {
		incident, err := rows[i].ToIncident()
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, incident)
	}
	return incidents, nil
}
