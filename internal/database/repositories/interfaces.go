package repositories

import (
	"context"
	"time"

	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
)

// FailureFilter narrows failure queries. Zero values are ignored.
type FailureFilter struct {
	Component   string
	FailureType types.FailureType
	Since       time.Time
	Until       time.Time
	Limit       int
}

// FailureRepository persists failure detections. Failures are never
// deleted, only archived.
type FailureRepository interface {
	Create(ctx context.Context, failure *types.FailureDetection) error
	GetByID(ctx context.Context, id string) (*types.FailureDetection, error)
	List(ctx context.Context, filter FailureFilter) ([]*types.FailureDetection, error)
	MarkFalsePositive(ctx context.Context, id, reason string) error
	SetRelated(ctx context.Context, id string, relatedIDs []string) error
	Archive(ctx context.Context, olderThan time.Time) (int64, error)
}

// AlertFilter narrows alert queries. Zero values are ignored.
type AlertFilter struct {
	Component  string
	Metric     types.MetricName
	Statuses   []types.AlertStatus
	Severities []types.Severity
	Since      time.Time
	Until      time.Time
	Limit      int
}

// AlertRepository persists alerts.
type AlertRepository interface {
	Create(ctx context.Context, alert *types.Alert) error
	Update(ctx context.Context, alert *types.Alert) error
	GetByID(ctx context.Context, id string) (*types.Alert, error)
	List(ctx context.Context, filter AlertFilter) ([]*types.Alert, error)
	ListActive(ctx context.Context) ([]*types.Alert, error)
	// FindActiveByKey returns the Open/Acknowledged/Investigating alert for
	// a (component, metric) pair, or nil when none exists.
	FindActiveByKey(ctx context.Context, component string, metric types.MetricName) (*types.Alert, error)
}

// IncidentFilter narrows incident queries. Zero values are ignored.
type IncidentFilter struct {
	Statuses   []types.IncidentStatus
	Severities []types.Severity
	Since      time.Time
	Until      time.Time
	Limit      int
}

// IncidentRepository persists incidents.
type IncidentRepository interface {
	Create(ctx context.Context, incident *types.Incident) error
	Update(ctx context.Context, incident *types.Incident) error
	GetByID(ctx context.Context, id string) (*types.Incident, error)
	List(ctx context.Context, filter IncidentFilter) ([]*types.Incident, error)
	ListOpen(ctx context.Context) ([]*types.Incident, error)
}

// RuleRepository persists monitoring rules.
type RuleRepository interface {
	Create(ctx context.Context, rule *types.MonitoringRule) error
	Update(ctx context.Context, rule *types.MonitoringRule) error
	GetByID(ctx context.Context, id string) (*types.MonitoringRule, error)
	List(ctx context.Context, enabledOnly bool) ([]*types.MonitoringRule, error)
	Delete(ctx context.Context, id string) error
	RecordTrigger(ctx context.Context, id string, at time.Time) error
}

// HealthRepository persists health snapshots as an append-only series.
type HealthRepository interface {
	Insert(ctx context.Context, snapshot *types.SystemHealth) error
	Latest(ctx context.Context) (*types.SystemHealth, error)
	History(ctx context.Context, since time.Time, limit int) ([]*types.SystemHealth, error)
	// RecentScores returns up to n most recent overall scores, newest first.
	RecentScores(ctx context.Context, n int) ([]float64, error)
}
