package alerting

import (
	"time"

	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
	"github.com/vigil-ops/vigil-backend-go/pkg/errors"
)

// SuppressionRule silences alerts for a component/metric during an active
// window (maintenance, known noisy periods). An alert created while a
// matching rule is active enters the Suppressed state directly and never
// notifies or escalates.
type SuppressionRule struct {
	ID        string           `json:"id" yaml:"id"`
	Component string           `json:"component" yaml:"component"` // empty matches all components
	Metric    types.MetricName `json:"metric" yaml:"metric"`       // empty matches all metrics
	StartsAt  time.Time        `json:"starts_at" yaml:"starts_at"`
	EndsAt    time.Time        `json:"ends_at" yaml:"ends_at"`
	Reason    string           `json:"reason" yaml:"reason"`
	CreatedBy string           `json:"created_by" yaml:"created_by"`
}

// ActiveAt reports whether the rule's window covers t.
func (r SuppressionRule) ActiveAt(t time.Time) bool {
	return !t.Before(r.StartsAt) && t.Before(r.EndsAt)
}

// Matches reports whether the rule applies to the given series at t.
func (r SuppressionRule) Matches(component string, metric types.MetricName, t time.Time) bool {
	if !r.ActiveAt(t) {
		return false
	}
	if r.Component != "" && r.Component != component {
		return false
	}
	if r.Metric != "" && r.Metric != metric {
		return false
	}
	return true
}

// Validate rejects malformed suppression rules at configuration time.
func (r SuppressionRule) Validate() error {
	if r.EndsAt.IsZero() || r.StartsAt.IsZero() {
		return errors.New(errors.KindConfiguration, "suppression rule requires a start and end time")
	}
	if !r.EndsAt.After(r.StartsAt) {
		return errors.New(errors.KindConfiguration, "suppression rule window must end after it starts")
	}
	return nil
}
