package types

// FailureType is the closed set of failure kinds the detection engine emits.
type FailureType string

const (
	FailureModelDegradation   FailureType = "model_degradation"
	FailurePerformanceAnomaly FailureType = "performance_anomaly"
	FailureQualityDrop        FailureType = "quality_drop"
	FailureLatencySpike       FailureType = "latency_spike"
	FailureErrorRateIncrease  FailureType = "error_rate_increase"
	FailureBiasDrift          FailureType = "bias_drift"
	FailureSafetyViolation    FailureType = "safety_violation"
	FailureComplianceBreach   FailureType = "compliance_breach"
	FailureResourceExhaustion FailureType = "resource_exhaustion"
	FailureIntegration        FailureType = "integration_failure"
	FailureDataPipeline       FailureType = "data_pipeline_failure"
	FailureSecurityIncident   FailureType = "security_incident"
)

// Valid reports whether t is one of the known failure types.
func (t FailureType) Valid() bool {
	switch t {
	case FailureModelDegradation, FailurePerformanceAnomaly, FailureQualityDrop,
		FailureLatencySpike, FailureErrorRateIncrease, FailureBiasDrift,
		FailureSafetyViolation, FailureComplianceBreach, FailureResourceExhaustion,
		FailureIntegration, FailureDataPipeline, FailureSecurityIncident:
		return true
	}
	return false
}

// Severity is the alert/incident severity scale.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}

// Rank orders severities, 0 being the most severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	case SeverityInfo:
		return 4
	default:
		return 5
	}
}

// MoreSevereThan reports whether s outranks other.
func (s Severity) MoreSevereThan(other Severity) bool {
	return s.Rank() < other.Rank()
}

// SeverityFromScore maps a [0,1] severity score onto the severity scale.
func SeverityFromScore(score float64) Severity {
	switch {
	case score >= 0.8:
		return SeverityCritical
	case score >= 0.6:
		return SeverityHigh
	case score >= 0.4:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// AlertStatus is the alert lifecycle state.
type AlertStatus string

const (
	AlertOpen          AlertStatus = "open"
	AlertAcknowledged  AlertStatus = "acknowledged"
	AlertInvestigating AlertStatus = "investigating"
	AlertResolved      AlertStatus = "resolved"
	AlertClosed        AlertStatus = "closed"
	AlertSuppressed    AlertStatus = "suppressed"
)

// Valid reports whether s is a known alert status.
func (s AlertStatus) Valid() bool {
	switch s {
	case AlertOpen, AlertAcknowledged, AlertInvestigating, AlertResolved, AlertClosed, AlertSuppressed:
		return true
	}
	return false
}

// Active reports whether an alert in this status still accepts evidence
// merges and escalation.
func (s AlertStatus) Active() bool {
	switch s {
	case AlertOpen, AlertAcknowledged, AlertInvestigating:
		return true
	}
	return false
}

// CanTransitionTo implements the alert state machine. Suppressed is a
// terminal side-state reachable from Open only; nothing leaves Closed.
func (s AlertStatus) CanTransitionTo(to AlertStatus) bool {
	switch s {
	case AlertOpen:
		switch to {
		case AlertAcknowledged, AlertInvestigating, AlertResolved, AlertSuppressed:
			return true
		}
		return false
	case AlertAcknowledged:
		switch to {
		case AlertInvestigating, AlertResolved:
			return true
		}
		return false
	case AlertInvestigating:
		return to == AlertResolved
	case AlertResolved:
		return to == AlertClosed
	case AlertClosed, AlertSuppressed:
		return false
	default:
		return false
	}
}

// IncidentStatus is the incident lifecycle state.
type IncidentStatus string

const (
	IncidentDetected      IncidentStatus = "detected"
	IncidentTriaging      IncidentStatus = "triaging"
	IncidentInvestigating IncidentStatus = "investigating"
	IncidentMitigating    IncidentStatus = "mitigating"
	IncidentResolved      IncidentStatus = "resolved"
	IncidentPostMortem    IncidentStatus = "post_mortem"
	IncidentClosed        IncidentStatus = "closed"
)

// Valid reports whether s is a known incident status.
func (s IncidentStatus) Valid() bool {
	switch s {
	case IncidentDetected, IncidentTriaging, IncidentInvestigating,
		IncidentMitigating, IncidentResolved, IncidentPostMortem, IncidentClosed:
		return true
	}
	return false
}

// Terminal reports whether the incident lifecycle has ended.
func (s IncidentStatus) Terminal() bool {
	return s == IncidentClosed
}

// Open reports whether the incident still counts against system health.
func (s IncidentStatus) Open() bool {
	switch s {
	case IncidentResolved, IncidentPostMortem, IncidentClosed:
		return false
	}
	return s.Valid()
}

func (s IncidentStatus) rank() int {
	switch s {
	case IncidentDetected:
		return 0
	case IncidentTriaging:
		return 1
	case IncidentInvestigating:
		return 2
	case IncidentMitigating:
		return 3
	case IncidentResolved:
		return 4
	case IncidentPostMortem:
		return 5
	case IncidentClosed:
		return 6
	default:
		return -1
	}
}

// CanTransitionTo implements the incident state machine: forward-only
// through the lifecycle, PostMortem optional, Closed reachable from
// Resolved or PostMortem only.
func (s IncidentStatus) CanTransitionTo(to IncidentStatus) bool {
	if !s.Valid() || !to.Valid() || s == to {
		return false
	}
	if to == IncidentClosed {
		return s == IncidentResolved || s == IncidentPostMortem
	}
	if to == IncidentPostMortem {
		return s == IncidentResolved
	}
	return to.rank() > s.rank() && to.rank() <= IncidentResolved.rank()
}

// MetricName is the closed set of monitored metrics.
type MetricName string

const (
	MetricResponseTime     MetricName = "response_time"
	MetricErrorRate        MetricName = "error_rate"
	MetricThroughput       MetricName = "throughput"
	MetricQualityScore     MetricName = "quality_score"
	MetricBiasScore        MetricName = "bias_score"
	MetricSafetyScore      MetricName = "safety_score"
	MetricComplianceScore  MetricName = "compliance_score"
	MetricResourceUsage    MetricName = "resource_usage"
	MetricUserSatisfaction MetricName = "user_satisfaction"
	MetricModelConfidence  MetricName = "model_confidence"
)

// Valid reports whether m is a known metric.
func (m MetricName) Valid() bool {
	switch m {
	case MetricResponseTime, MetricErrorRate, MetricThroughput, MetricQualityScore,
		MetricBiasScore, MetricSafetyScore, MetricComplianceScore,
		MetricResourceUsage, MetricUserSatisfaction, MetricModelConfidence:
		return true
	}
	return false
}

// ThresholdMode selects how a monitoring rule evaluates samples.
type ThresholdMode string

const (
	ModeStatic          ThresholdMode = "static"
	ModeDynamicBaseline ThresholdMode = "dynamic_baseline"
	ModeAnomaly         ThresholdMode = "anomaly"
)

// Valid reports whether m is a known threshold mode.
func (m ThresholdMode) Valid() bool {
	switch m {
	case ModeStatic, ModeDynamicBaseline, ModeAnomaly:
		return true
	}
	return false
}

// ChannelType is a notification delivery channel.
type ChannelType string

const (
	ChannelEmail     ChannelType = "email"
	ChannelSlack     ChannelType = "slack"
	ChannelTeams     ChannelType = "teams"
	ChannelWebhook   ChannelType = "webhook"
	ChannelSMS       ChannelType = "sms"
	ChannelPagerDuty ChannelType = "pagerduty"
	ChannelDashboard ChannelType = "dashboard"
)

// DeliveryOutcome is the final result of a notification attempt.
type DeliveryOutcome string

const (
	DeliverySucceeded DeliveryOutcome = "delivered"
	DeliveryFailed    DeliveryOutcome = "failed"
)

// TrendDirection classifies how a health metric is moving.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendStable    TrendDirection = "stable"
	TrendDegrading TrendDirection = "degrading"
)
