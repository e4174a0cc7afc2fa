// Package monitor watches deployed decoys for unauthorized interaction and
// dispatches a mitigation for each confirmed alert.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/TFMV/mirage/pkg/mirage/model"
	"github.com/TFMV/mirage/pkg/mirage/oracle"
)

const (
	accessMaxTokens   = 50
	accessTemperature = 0.3
)

// Monitor asks the decision service, per deployed decoy, whether it has been
// interacted with, and accumulates the resulting alerts.
type Monitor struct {
	decider oracle.Decider

	mu     sync.Mutex
	alerts []model.Alert
}

// New creates an access monitor backed by the given decider.
func New(decider oracle.Decider) *Monitor {
	return &Monitor{decider: decider}
}

// Sweep checks each deployment in order and returns the accumulated alerts.
// A hard decision failure skips that deployment for this pass; it is not
// retried until the next sweep. At most one alert is raised per deployment
// per pass.
func (m *Monitor) Sweep(ctx context.Context, deployments []model.Deployment) []model.Alert {
	for _, deployment := range deployments {
		fields, err := m.decider.Decide(ctx, oracle.TaskAccess, deployment, accessMaxTokens, accessTemperature)
		if err != nil {
			log.Warn().Err(err).Str("decoy_id", deployment.DecoyID).Msg("Access decision failed, skipping deployment this pass")
			continue
		}

		accessed, _ := fields.Bool("is_accessed")
		if !accessed {
			continue
		}

		alert := model.Alert{
			ID:        uuid.NewString(),
			DecoyID:   deployment.DecoyID,
			Timestamp: time.Now(),
			Details:   "Unauthorized access detected on " + deployment.Details,
		}

		m.mu.Lock()
		m.alerts = append(m.alerts, alert)
		m.mu.Unlock()

		log.Info().Str("alert_id", alert.ID).Str("decoy_id", alert.DecoyID).Msg("Decoy interaction detected")
	}

	return m.Alerts()
}

// Alerts returns a copy of the accumulated alerts in emission order.
func (m *Monitor) Alerts() []model.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}
