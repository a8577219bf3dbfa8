package types

import (
	"time"
)

// MetricSample is one observation of a monitored metric, the entry point
// of the detection pipeline.
type MetricSample struct {
	Component   string            `json:"component"`
	ComponentID string            `json:"component_id"`
	Metric      MetricName        `json:"metric"`
	Value       float64           `json:"value"`
	Timestamp   time.Time         `json:"timestamp"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// FailureDetection is one detected deviation of a metric from its
// threshold or baseline. Immutable after creation except the
// false-positive flag and the related-failures back-references.
type FailureDetection struct {
	ID                    string                 `json:"id"`
	FailureType           FailureType            `json:"failure_type"`
	DetectedAt            time.Time              `json:"detected_at"`
	DetectionMethod       string                 `json:"detection_method"` // "threshold", "baseline", "anomaly"
	Component             string                 `json:"component"`
	ComponentID           string                 `json:"component_id"`
	SeverityScore         float64                `json:"severity_score"`   // 0.0 to 1.0
	Confidence            float64                `json:"confidence_level"` // 0.0 to 1.0
	Description           string                 `json:"description"`
	RootCauseHint         string                 `json:"root_cause_hint,omitempty"`
	ImpactAssessment      string                 `json:"impact_assessment,omitempty"`
	AffectedMetrics       []string               `json:"affected_metrics"`
	BaselineValues        map[string]float64     `json:"baseline_values"`
	CurrentValues         map[string]float64     `json:"current_values"`
	DeviationPct          float64                `json:"deviation_percentage"`
	RuleIDs               []string               `json:"detection_rules"`
	RelatedFailures       []string               `json:"related_failures"`
	MitigationSuggestions []string               `json:"mitigation_suggestions,omitempty"`
	FalsePositive         bool                   `json:"is_false_positive"`
	FalsePositiveReason   string                 `json:"false_positive_reason,omitempty"`
	ArchivedAt            *time.Time             `json:"archived_at,omitempty"`
	Metadata              map[string]interface{} `json:"metadata,omitempty"`
}

// EscalationStep records one automatic escalation of an alert.
type EscalationStep struct {
	Level   int         `json:"level"`
	At      time.Time   `json:"at"`
	Channel ChannelType `json:"channel"`
	Reason  string      `json:"reason"`
}

// NotificationRecord is one entry in an alert's notification history.
// Failed dispatches are recorded here, never surfaced as state errors.
type NotificationRecord struct {
	Channel  ChannelType     `json:"channel"`
	SentAt   time.Time       `json:"sent_at"`
	Outcome  DeliveryOutcome `json:"outcome"`
	Attempts int             `json:"attempts"`
	Error    string          `json:"error,omitempty"`
}

// Alert is an actionable, lifecycle-tracked notification derived from one
// or more failures or a direct threshold breach.
type Alert struct {
	ID                     string                 `json:"id"`
	Title                  string                 `json:"title"`
	Description            string                 `json:"description"`
	Severity               Severity               `json:"severity"`
	Status                 AlertStatus            `json:"status"`
	SourceFailureID        string                 `json:"source_failure_id,omitempty"`
	Component              string                 `json:"component"`
	Metric                 MetricName             `json:"metric"`
	TriggeredAt            time.Time              `json:"triggered_at"`
	TriggeredBy            string                 `json:"triggered_by"`
	AcknowledgmentRequired bool                   `json:"acknowledgment_required"`
	AcknowledgedAt         *time.Time             `json:"acknowledged_at,omitempty"`
	AcknowledgedBy         string                 `json:"acknowledged_by,omitempty"`
	ResolvedAt             *time.Time             `json:"resolved_at,omitempty"`
	ResolvedBy             string                 `json:"resolved_by,omitempty"`
	ResolutionNotes        string                 `json:"resolution_notes,omitempty"`
	ClosedAt               *time.Time             `json:"closed_at,omitempty"`
	EscalationLevel        int                    `json:"escalation_level"`
	LastEscalatedAt        *time.Time             `json:"last_escalated_at,omitempty"`
	EscalationHistory      []EscalationStep       `json:"escalation_history"`
	NotificationHistory    []NotificationRecord   `json:"notification_history"`
	EvidenceCount          int                    `json:"evidence_count"`
	RelatedFailureIDs      []string               `json:"related_failure_ids"`
	Tags                   []string               `json:"tags,omitempty"`
	UpdatedAt              time.Time              `json:"updated_at"`
	Metadata               map[string]interface{} `json:"metadata,omitempty"`
}

// TimelineEntry records one incident state transition.
type TimelineEntry struct {
	At    time.Time      `json:"at"`
	Actor string         `json:"actor"`
	From  IncidentStatus `json:"from"`
	To    IncidentStatus `json:"to"`
	Note  string         `json:"note,omitempty"`
}

// Incident is a coordination unit over one or more related alerts and
// failures, with its own lifecycle and timeline.
type Incident struct {
	ID                  string                 `json:"id"`
	Title               string                 `json:"title"`
	Description         string                 `json:"description"`
	Status              IncidentStatus         `json:"status"`
	Severity            Severity               `json:"severity"`
	Priority            int                    `json:"priority"` // 1 = highest, 5 = lowest
	CreatedAt           time.Time              `json:"created_at"`
	CreatedBy           string                 `json:"created_by"`
	AssignedTo          string                 `json:"assigned_to,omitempty"`
	Commander           string                 `json:"incident_commander,omitempty"`
	AffectedServices    []string               `json:"affected_services"`
	AffectedUsers       int                    `json:"affected_users"`
	BusinessImpact      string                 `json:"business_impact,omitempty"`
	RelatedAlerts       []string               `json:"related_alerts"`
	RelatedFailures     []string               `json:"related_failures"`
	Timeline            []TimelineEntry        `json:"timeline"`
	ResolutionSteps     []string               `json:"resolution_steps,omitempty"`
	RootCause           string                 `json:"root_cause,omitempty"`
	LessonsLearned      string                 `json:"lessons_learned,omitempty"`
	PostMortemURL       string                 `json:"post_mortem_url,omitempty"`
	EstimatedResolution *time.Time             `json:"estimated_resolution,omitempty"`
	ActualResolution    *time.Time             `json:"actual_resolution,omitempty"`
	MergedInto          string                 `json:"merged_into,omitempty"`
	UpdatedAt           time.Time              `json:"updated_at"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
}

// PerformanceMetrics are the aggregates the health score is computed from.
type PerformanceMetrics struct {
	ErrorRate           float64 `json:"error_rate"` // fraction, 0.01 = 1%
	MeanResponseTime    float64 `json:"mean_response_time"`
	P95ResponseTime     float64 `json:"p95_response_time"`
	P99ResponseTime     float64 `json:"p99_response_time"`
	ThroughputPerMinute float64 `json:"throughput_per_minute"`
}

// SystemHealth is a point-in-time health snapshot. Append-only: once
// written it is never updated retroactively.
type SystemHealth struct {
	ID                  string                    `json:"id"`
	Timestamp           time.Time                 `json:"timestamp"`
	OverallScore        float64                   `json:"overall_health_score"` // 0.0 to 1.0
	ComponentScores     map[string]float64        `json:"component_health"`
	ActiveAlerts        int                       `json:"active_alerts_count"`
	CriticalAlerts      int                       `json:"critical_alerts_count"`
	OpenIncidents       int                       `json:"open_incidents_count"`
	RecentFailures      int                       `json:"recent_failures_count"`
	AvailabilityPct     float64                   `json:"availability_percentage"`
	ErrorRatePct        float64                   `json:"error_rate_percentage"`
	MeanResponseTime    float64                   `json:"mean_response_time"`
	P95ResponseTime     float64                   `json:"p95_response_time"`
	ThroughputPerMinute float64                   `json:"throughput_per_minute"`
	ResourceUtilization map[string]float64        `json:"resource_utilization"`
	Trends              map[string]TrendDirection `json:"trend_analysis"`
	Metadata            map[string]interface{}    `json:"metadata,omitempty"`
}
