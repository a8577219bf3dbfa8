package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the engine's Prometheus instruments.
type Collector struct {
	SamplesIngested  prometheus.Counter
	DetectionErrors  prometheus.Counter
	FailuresDetected *prometheus.CounterVec

	AlertsCreated      *prometheus.CounterVec
	AlertsDeduplicated prometheus.Counter
	AlertsSuppressed   prometheus.Counter
	AlertsActive       *prometheus.GaugeVec

	EscalationsTotal prometheus.Counter

	IncidentsCreated *prometheus.CounterVec
	IncidentsOpen    prometheus.Gauge

	HealthScore     prometheus.Gauge
	ComponentHealth *prometheus.GaugeVec

	NotificationsTotal *prometheus.CounterVec
}

// NewCollector registers the engine metrics on the given registerer.
// Pass prometheus.DefaultRegisterer in production and a fresh registry
// in tests.
func NewCollector(prefix string, reg prometheus.Registerer) *Collector {
	if prefix == "" {
		prefix = "vigil"
	}
	factory := promauto.With(reg)

	return &Collector{
		SamplesIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_samples_ingested_total",
			Help: "Total number of metric samples ingested",
		}),
		DetectionErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_detection_errors_total",
			Help: "Total number of malformed samples dropped",
		}),
		FailuresDetected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_failures_detected_total",
			Help: "Total number of failures detected",
		}, []string{"failure_type"}),

		AlertsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_alerts_created_total",
			Help: "Total number of alerts created",
		}, []string{"severity"}),
		AlertsDeduplicated: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_alerts_deduplicated_total",
			Help: "Total number of failures merged into existing alerts",
		}),
		AlertsSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_alerts_suppressed_total",
			Help: "Total number of alerts suppressed on creation",
		}),
		AlertsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: prefix + "_alerts_active",
			Help: "Number of alerts in an active state",
		}, []string{"severity"}),

		EscalationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_escalations_total",
			Help: "Total number of automatic alert escalations",
		}),

		IncidentsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_incidents_created_total",
			Help: "Total number of incidents created",
		}, []string{"trigger"}),
		IncidentsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_incidents_open",
			Help: "Number of open incidents",
		}),

		HealthScore: factory.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_health_score",
			Help: "Overall system health score",
		}),
		ComponentHealth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: prefix + "_component_health_score",
			Help: "Per-component health score",
		}, []string{"component"}),

		NotificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_notifications_total",
			Help: "Total number of notification dispatch attempts by outcome",
		}, []string{"channel", "outcome"}),
	}
}
