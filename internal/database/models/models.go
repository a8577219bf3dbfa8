package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
)

// Row types mirror the SQLite schema. Structured fields (slices, maps,
// histories) are stored as JSON TEXT columns; durations as nanoseconds.

// FailureRow is the failures table shape.
type FailureRow struct {
	ID                    string     `db:"id"`
	FailureType           string     `db:"failure_type"`
	DetectedAt            time.Time  `db:"detected_at"`
	DetectionMethod       string     `db:"detection_method"`
	Component             string     `db:"component"`
	ComponentID           string     `db:"component_id"`
	SeverityScore         float64    `db:"severity_score"`
	Confidence            float64    `db:"confidence"`
	Description           string     `db:"description"`
	RootCauseHint         string     `db:"root_cause_hint"`
	ImpactAssessment      string     `db:"impact_assessment"`
	AffectedMetrics       string     `db:"affected_metrics"`
	BaselineValues        string     `db:"baseline_values"`
	CurrentValues         string     `db:"current_values"`
	DeviationPct          float64    `db:"deviation_pct"`
	RuleIDs               string     `db:"rule_ids"`
	RelatedFailures       string     `db:"related_failures"`
	MitigationSuggestions string     `db:"mitigation_suggestions"`
	FalsePositive         bool       `db:"false_positive"`
	FalsePositiveReason   string     `db:"false_positive_reason"`
	ArchivedAt            *time.Time `db:"archived_at"`
	Metadata              string     `db:"metadata"`
}

// FailureToRow converts a domain failure to its row shape.
func FailureToRow(f *types.FailureDetection) (*FailureRow, error) {
	affected, err := toJSON(f.AffectedMetrics)
	if err != nil {
		return nil, err
	}
	baseline, err := toJSON(f.BaselineValues)
	if err != nil {
		return nil, err
	}
	current, err := toJSON(f.CurrentValues)
	if err != nil {
		return nil, err
	}
	ruleIDs, err := toJSON(f.RuleIDs)
	if err != nil {
		return nil, err
	}
	related, err := toJSON(f.RelatedFailures)
	if err != nil {
		return nil, err
	}
	mitigations, err := toJSON(f.MitigationSuggestions)
	if err != nil {
		return nil, err
	}
	metadata, err := toJSON(f.Metadata)
	if err != nil {
		return nil, err
	}
	return &FailureRow{
		ID:                    f.ID,
		FailureType:           string(f.FailureType),
		DetectedAt:            f.DetectedAt,
		DetectionMethod:       f.DetectionMethod,
		Component:             f.Component,
		ComponentID:           f.ComponentID,
		SeverityScore:         f.SeverityScore,
		Confidence:            f.Confidence,
		Description:           f.Description,
		RootCauseHint:         f.RootCauseHint,
		ImpactAssessment:      f.ImpactAssessment,
		AffectedMetrics:       affected,
		BaselineValues:        baseline,
		CurrentValues:         current,
		DeviationPct:          f.DeviationPct,
		RuleIDs:               ruleIDs,
		RelatedFailures:       related,
		MitigationSuggestions: mitigations,
		FalsePositive:         f.FalsePositive,
		FalsePositiveReason:   f.FalsePositiveReason,
		ArchivedAt:            f.ArchivedAt,
		Metadata:              metadata,
	}, nil
}

// ToFailure converts a row back to the domain type.
func (r *FailureRow) ToFailure() (*types.FailureDetection, error) {
	f := &types.FailureDetection{
		ID:                  r.ID,
		FailureType:         types.FailureType(r.FailureType),
		DetectedAt:          r.DetectedAt,
		DetectionMethod:     r.DetectionMethod,
		Component:           r.Component,
		ComponentID:         r.ComponentID,
		SeverityScore:       r.SeverityScore,
		Confidence:          r.Confidence,
		Description:         r.Description,
		RootCauseHint:       r.RootCauseHint,
		ImpactAssessment:    r.ImpactAssessment,
		DeviationPct:        r.DeviationPct,
		FalsePositive:       r.FalsePositive,
		FalsePositiveReason: r.FalsePositiveReason,
		ArchivedAt:          r.ArchivedAt,
	}
	if err := fromJSON(r.AffectedMetrics, &f.AffectedMetrics); err != nil {
		return nil, err
	}
	if err := fromJSON(r.BaselineValues, &f.BaselineValues); err != nil {
		return nil, err
	}
	if err := fromJSON(r.CurrentValues, &f.CurrentValues); err != nil {
		return nil, err
	}
	if err := fromJSON(r.RuleIDs, &f.RuleIDs); err != nil {
		return nil, err
	}
	if err := fromJSON(r.RelatedFailures, &f.RelatedFailures); err != nil {
		return nil, err
	}
	if err := fromJSON(r.MitigationSuggestions, &f.MitigationSuggestions); err != nil {
		return nil, err
	}
	if err := fromJSON(r.Metadata, &f.Metadata); err != nil {
		return nil, err
	}
	return f, nil
}

// AlertRow is the alerts table shape.
type AlertRow struct {
	ID                  string     `db:"id"`
	Title               string     `db:"title"`
	Description         string     `db:"description"`
	Severity            string     `db:"severity"`
	Status              string     `db:"status"`
	SourceFailureID     string     `db:"source_failure_id"`
	Component           string     `db:"component"`
	Metric              string     `db:"metric"`
	TriggeredAt         time.Time  `db:"triggered_at"`
	TriggeredBy         string     `db:"triggered_by"`
	AckRequired         bool       `db:"acknowledgment_required"`
	AcknowledgedAt      *time.Time `db:"acknowledged_at"`
	AcknowledgedBy      string     `db:"acknowledged_by"`
	ResolvedAt          *time.Time `db:"resolved_at"`
	ResolvedBy          string     `db:"resolved_by"`
	ResolutionNotes     string     `db:"resolution_notes"`
	ClosedAt            *time.Time `db:"closed_at"`
	EscalationLevel     int        `db:"escalation_level"`
	LastEscalatedAt     *time.Time `db:"last_escalated_at"`
	EscalationHistory   string     `db:"escalation_history"`
	NotificationHistory string     `db:"notification_history"`
	EvidenceCount       int        `db:"evidence_count"`
	RelatedFailureIDs   string     `db:"related_failure_ids"`
	Tags                string     `db:"tags"`
	UpdatedAt           time.Time  `db:"updated_at"`
	Metadata            string     `db:"metadata"`
}

// AlertToRow converts a domain alert to its row shape.
func AlertToRow(a *types.Alert) (*AlertRow, error) {
	escalations, err := toJSON(a.EscalationHistory)
	if err != nil {
		return nil, err
	}
	notifications, err := toJSON(a.NotificationHistory)
	if err != nil {
		return nil, err
	}
	related, err := toJSON(a.RelatedFailureIDs)
	if err != nil {
		return nil, err
	}
	tags, err := toJSON(a.Tags)
	if err != nil {
		return nil, err
	}
	metadata, err := toJSON(a.Metadata)
	if err != nil {
		return nil, err
	}
	return &AlertRow{
		ID:                  a.ID,
		Title:               a.Title,
		Description:         a.Description,
		Severity:            string(a.Severity),
		Status:              string(a.Status),
		SourceFailureID:     a.SourceFailureID,
		Component:           a.Component,
		Metric:              string(a.Metric),
		TriggeredAt:         a.TriggeredAt,
		TriggeredBy:         a.TriggeredBy,
		AckRequired:         a.AcknowledgmentRequired,
		AcknowledgedAt:      a.AcknowledgedAt,
		AcknowledgedBy:      a.AcknowledgedBy,
		ResolvedAt:          a.ResolvedAt,
		ResolvedBy:          a.ResolvedBy,
		ResolutionNotes:     a.ResolutionNotes,
		ClosedAt:            a.ClosedAt,
		EscalationLevel:     a.EscalationLevel,
		LastEscalatedAt:     a.LastEscalatedAt,
		EscalationHistory:   escalations,
		NotificationHistory: notifications,
		EvidenceCount:       a.EvidenceCount,
		RelatedFailureIDs:   related,
		Tags:                tags,
		UpdatedAt:           a.UpdatedAt,
		Metadata:            metadata,
	}, nil
}

// ToAlert converts a row back to the domain type.
func (r *AlertRow) ToAlert() (*types.Alert, error) {
	a := &types.Alert{
		ID:                     r.ID,
		Title:                  r.Title,
		Description:            r.Description,
		Severity:               types.Severity(r.Severity),
		Status:                 types.AlertStatus(r.Status),
		SourceFailureID:        r.SourceFailureID,
		Component:              r.Component,
		Metric:                 types.MetricName(r.Metric),
		TriggeredAt:            r.TriggeredAt,
		TriggeredBy:            r.TriggeredBy,
		AcknowledgmentRequired: r.AckRequired,
		AcknowledgedAt:         r.AcknowledgedAt,
		AcknowledgedBy:         r.AcknowledgedBy,
		ResolvedAt:             r.ResolvedAt,
		ResolvedBy:             r.ResolvedBy,
		ResolutionNotes:        r.ResolutionNotes,
		ClosedAt:               r.ClosedAt,
		EscalationLevel:        r.EscalationLevel,
		LastEscalatedAt:        r.LastEscalatedAt,
		EvidenceCount:          r.EvidenceCount,
		UpdatedAt:              r.UpdatedAt,
	}
	if err := fromJSON(r.EscalationHistory, &a.EscalationHistory); err != nil {
		return nil, err
	}
	if err := fromJSON(r.NotificationHistory, &a.NotificationHistory); err != nil {
		return nil, err
	}
	if err := fromJSON(r.RelatedFailureIDs, &a.RelatedFailureIDs); err != nil {
		return nil, err
	}
	if err := fromJSON(r.Tags, &a.Tags); err != nil {
		return nil, err
	}
	if err := fromJSON(r.Metadata, &a.Metadata); err != nil {
		return nil, err
	}
	return a, nil
}

// IncidentRow is the incidents table shape.
type IncidentRow struct {
	ID                  string     `db:"id"`
	Title               string     `db:"title"`
	Description         string     `db:"description"`
	Status              string     `db:"status"`
	Severity            string     `db:"severity"`
	Priority            int        `db:"priority"`
	CreatedAt           time.Time  `db:"created_at"`
	CreatedBy           string     `db:"created_by"`
	AssignedTo          string     `db:"assigned_to"`
	Commander           string     `db:"commander"`
	AffectedServices    string     `db:"affected_services"`
	AffectedUsers       int        `db:"affected_users"`
	BusinessImpact      string     `db:"business_impact"`
	RelatedAlerts       string     `db:"related_alerts"`
	RelatedFailures     string     `db:"related_failures"`
	Timeline            string     `db:"timeline"`
	ResolutionSteps     string     `db:"resolution_steps"`
	RootCause           string     `db:"root_cause"`
	LessonsLearned      string     `db:"lessons_learned"`
	PostMortemURL       string     `db:"post_mortem_url"`
	EstimatedResolution *time.Time `db:"estimated_resolution"`
	ActualResolution    *time.Time `db:"actual_resolution"`
	MergedInto          string     `db:"merged_into"`
	UpdatedAt           time.Time  `db:"updated_at"`
	Metadata            string     `db:"metadata"`
}

// IncidentToRow converts a domain incident to its row shape.
func IncidentToRow(i *types.Incident) (*IncidentRow, error) {
	services, err := toJSON(i.AffectedServices)
	if err != nil {
		return nil, err
	}
	alerts, err := toJSON(i.RelatedAlerts)
	if err != nil {
		return nil, err
	}
	failures, err := toJSON(i.RelatedFailures)
	if err != nil {
		return nil, err
	}
	timeline, err := toJSON(i.Timeline)
	if err != nil {
		return nil, err
	}
	steps, err := toJSON(i.ResolutionSteps)
	if err != nil {
		return nil, err
	}
	metadata, err := toJSON(i.Metadata)
	if err != nil {
		return nil, err
	}
	return &IncidentRow{
		ID:                  i.ID,
		Title:               i.Title,
		Description:         i.Description,
		Status:              string(i.Status),
		Severity:            string(i.Severity),
		Priority:            i.Priority,
		CreatedAt:           i.CreatedAt,
		CreatedBy:           i.CreatedBy,
		AssignedTo:          i.AssignedTo,
		Commander:           i.Commander,
		AffectedServices:    services,
		AffectedUsers:       i.AffectedUsers,
		BusinessImpact:      i.BusinessImpact,
		RelatedAlerts:       alerts,
		RelatedFailures:     failures,
		Timeline:            timeline,
		ResolutionSteps:     steps,
		RootCause:           i.RootCause,
		LessonsLearned:      i.LessonsLearned,
		PostMortemURL:       i.PostMortemURL,
		EstimatedResolution: i.EstimatedResolution,
		ActualResolution:    i.ActualResolution,
		MergedInto:          i.MergedInto,
		UpdatedAt:           i.UpdatedAt,
		Metadata:            metadata,
	}, nil
}

// ToIncident converts a row back to the domain type.
func (r *IncidentRow) ToIncident() (*types.Incident, error) {
	i := &types.Incident{
		ID:                  r.ID,
		Title:               r.Title,
		Description:         r.Description,
		Status:              types.IncidentStatus(r.Status),
		Severity:            types.Severity(r.Severity),
		Priority:            r.Priority,
		CreatedAt:           r.CreatedAt,
		CreatedBy:           r.CreatedBy,
		AssignedTo:          r.AssignedTo,
		Commander:           r.Commander,
		AffectedUsers:       r.AffectedUsers,
		BusinessImpact:      r.BusinessImpact,
		RootCause:           r.RootCause,
		LessonsLearned:      r.LessonsLearned,
		PostMortemURL:       r.PostMortemURL,
		EstimatedResolution: r.EstimatedResolution,
		ActualResolution:    r.ActualResolution,
		MergedInto:          r.MergedInto,
		UpdatedAt:           r.UpdatedAt,
	}
	if err := fromJSON(r.AffectedServices, &i.AffectedServices); err != nil {
		return nil, err
	}
	if err := fromJSON(r.RelatedAlerts, &i.RelatedAlerts); err != nil {
		return nil, err
	}
	if err := fromJSON(r.RelatedFailures, &i.RelatedFailures); err != nil {
		return nil, err
	}
	if err := fromJSON(r.Timeline, &i.Timeline); err != nil {
		return nil, err
	}
	if err := fromJSON(r.ResolutionSteps, &i.ResolutionSteps); err != nil {
		return nil, err
	}
	if err := fromJSON(r.Metadata, &i.Metadata); err != nil {
		return nil, err
	}
	return i, nil
}

// RuleRow is the monitoring_rules table shape. Durations are stored as
// nanoseconds.
type RuleRow struct {
	ID                   string     `db:"id"`
	Name                 string     `db:"name"`
	Description          string     `db:"description"`
	Enabled              bool       `db:"enabled"`
	Metric               string     `db:"metric"`
	Component            string     `db:"component"`
	Mode                 string     `db:"mode"`
	Threshold            float64    `db:"threshold"`
	Operator             string     `db:"operator"`
	BaselinePeriod       int64      `db:"baseline_period"`
	EvaluationWindow     int64      `db:"evaluation_window"`
	Sensitivity          float64    `db:"sensitivity"`
	MinDataPoints        int        `db:"min_data_points"`
	ConfidenceFloor      float64    `db:"confidence_floor"`
	FailureType          string     `db:"failure_type"`
	NotificationChannels string     `db:"notification_channels"`
	SuppressionDuration  int64      `db:"suppression_duration"`
	CreatedAt            time.Time  `db:"created_at"`
	CreatedBy            string     `db:"created_by"`
	LastTriggered        *time.Time `db:"last_triggered"`
	TriggerCount         int64      `db:"trigger_count"`
	FalsePositiveCount   int64      `db:"false_positive_count"`
	Metadata             string     `db:"metadata"`
}

// RuleToRow converts a domain rule to its row shape.
func RuleToRow(rule *types.MonitoringRule) (*RuleRow, error) {
	channels, err := toJSON(rule.NotificationChannels)
	if err != nil {
		return nil, err
	}
	metadata, err := toJSON(rule.Metadata)
	if err != nil {
		return nil, err
	}
	return &RuleRow{
		ID:                   rule.ID,
		Name:                 rule.Name,
		Description:          rule.Description,
		Enabled:              rule.Enabled,
		Metric:               string(rule.Metric),
		Component:            rule.Component,
		Mode:                 string(rule.Mode),
		Threshold:            rule.Threshold,
		Operator:             rule.Operator,
		BaselinePeriod:       int64(rule.BaselinePeriod),
		EvaluationWindow:     int64(rule.EvaluationWindow),
		Sensitivity:          rule.Sensitivity,
		MinDataPoints:        rule.MinDataPoints,
		ConfidenceFloor:      rule.ConfidenceFloor,
		FailureType:          string(rule.FailureType),
		NotificationChannels: channels,
		SuppressionDuration:  int64(rule.SuppressionDuration),
		CreatedAt:            rule.CreatedAt,
		CreatedBy:            rule.CreatedBy,
		LastTriggered:        rule.LastTriggered,
		TriggerCount:         rule.TriggerCount,
		FalsePositiveCount:   rule.FalsePositiveCount,
		Metadata:             metadata,
	}, nil
}

// ToRule converts a row back to the domain type.
func (r *RuleRow) ToRule() (*types.MonitoringRule, error) {
	rule := &types.MonitoringRule{
		ID:                  r.ID,
		Name:                r.Name,
		Description:         r.Description,
		Enabled:             r.Enabled,
		Metric:              types.MetricName(r.Metric),
		Component:           r.Component,
		Mode:                types.ThresholdMode(r.Mode),
		Threshold:           r.Threshold,
		Operator:            r.Operator,
		BaselinePeriod:      time.Duration(r.BaselinePeriod),
		EvaluationWindow:    time.Duration(r.EvaluationWindow),
		Sensitivity:         r.Sensitivity,
		MinDataPoints:       r.MinDataPoints,
		ConfidenceFloor:     r.ConfidenceFloor,
		FailureType:         types.FailureType(r.FailureType),
		SuppressionDuration: time.Duration(r.SuppressionDuration),
		CreatedAt:           r.CreatedAt,
		CreatedBy:           r.CreatedBy,
		LastTriggered:       r.LastTriggered,
		TriggerCount:        r.TriggerCount,
		FalsePositiveCount:  r.FalsePositiveCount,
	}
	if err := fromJSON(r.NotificationChannels, &rule.NotificationChannels); err != nil {
		return nil, err
	}
	if err := fromJSON(r.Metadata, &rule.Metadata); err != nil {
		return nil, err
	}
	return rule, nil
}

// HealthRow is the health_snapshots table shape.
type HealthRow struct {
	ID                  string    `db:"id"`
	Timestamp           time.Time `db:"timestamp"`
	OverallScore        float64   `db:"overall_score"`
	ComponentScores     string    `db:"component_scores"`
	ActiveAlerts        int       `db:"active_alerts"`
	CriticalAlerts      int       `db:"critical_alerts"`
	OpenIncidents       int       `db:"open_incidents"`
	RecentFailures      int       `db:"recent_failures"`
	AvailabilityPct     float64   `db:"availability_pct"`
	ErrorRatePct        float64   `db:"error_rate_pct"`
	MeanResponseTime    float64   `db:"mean_response_time"`
	P95ResponseTime     float64   `db:"p95_response_time"`
	ThroughputPerMinute float64   `db:"throughput_per_minute"`
	ResourceUtilization string    `db:"resource_utilization"`
	Trends              string    `db:"trends"`
	Metadata            string    `db:"metadata"`
}

// HealthToRow converts a domain snapshot to its row shape.
func HealthToRow(h *types.SystemHealth) (*HealthRow, error) {
	components, err := toJSON(h.ComponentScores)
	if err != nil {
		return nil, err
	}
	utilization, err := toJSON(h.ResourceUtilization)
	if err != nil {
		return nil, err
	}
	trends, err := toJSON(h.Trends)
	if err != nil {
		return nil, err
	}
	metadata, err := toJSON(h.Metadata)
	if err != nil {
		return nil, err
	}
	return &HealthRow{
		ID:                  h.ID,
		Timestamp:           h.Timestamp,
		OverallScore:        h.OverallScore,
		ComponentScores:     components,
		ActiveAlerts:        h.ActiveAlerts,
		CriticalAlerts:      h.CriticalAlerts,
		OpenIncidents:       h.OpenIncidents,
		RecentFailures:      h.RecentFailures,
		AvailabilityPct:     h.AvailabilityPct,
		ErrorRatePct:        h.ErrorRatePct,
		MeanResponseTime:    h.MeanResponseTime,
		P95ResponseTime:     h.P95ResponseTime,
		ThroughputPerMinute: h.ThroughputPerMinute,
		ResourceUtilization: utilization,
		Trends:              trends,
		Metadata:            metadata,
	}, nil
}

// ToHealth converts a row back to the domain type.
func (r *HealthRow) ToHealth() (*types.SystemHealth, error) {
	h := &types.SystemHealth{
		ID:                  r.ID,
		Timestamp:           r.Timestamp,
		OverallScore:        r.OverallScore,
		ActiveAlerts:        r.ActiveAlerts,
		CriticalAlerts:      r.CriticalAlerts,
		OpenIncidents:       r.OpenIncidents,
		RecentFailures:      r.RecentFailures,
		AvailabilityPct:     r.AvailabilityPct,
		ErrorRatePct:        r.ErrorRatePct,
		MeanResponseTime:    r.MeanResponseTime,
		P95ResponseTime:     r.P95ResponseTime,
		ThroughputPerMinute: r.ThroughputPerMinute,
	}
	if err := fromJSON(r.ComponentScores, &h.ComponentScores); err != nil {
		return nil, err
	}
	if err := fromJSON(r.ResourceUtilization, &h.ResourceUtilization); err != nil {
		return nil, err
	}
	if err := fromJSON(r.Trends, &h.Trends); err != nil {
		return nil, err
	}
	if err := fromJSON(r.Metadata, &h.Metadata); err != nil {
		return nil, err
	}
	return h, nil
}

func toJSON(v interface{}) (string, error) {
	if v == nil {
		return "null", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode column: %w", err)
	}
	return string(data), nil
}

func fromJSON(data string, v interface{}) error {
	if data == "" || data == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("failed to decode column: %w", err)
	}
	return nil
}
