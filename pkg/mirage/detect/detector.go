// Package detect turns raw telemetry events into threats by asking the
// decision service whether each event is anomalous.
package detect

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/TFMV/mirage/pkg/mirage/model"
	"github.com/TFMV/mirage/pkg/mirage/oracle"
)

const (
	anomalyMaxTokens   = 50
	anomalyTemperature = 0.3
)

// Detector consumes telemetry events and accumulates the threats found.
// Analyze may be invoked concurrently: the ingestion endpoint feeds it while
// a cycle is running.
type Detector struct {
	decider oracle.Decider

	mu      sync.Mutex
	threats []model.Threat
	rng     *rand.Rand
}

// New creates a threat detector backed by the given decider.
func New(decider oracle.Decider) *Detector {
	return &Detector{
		decider: decider,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Analyze inspects each event in arrival order and returns the accumulated
// threats, including those found by earlier calls. Error-marker pseudo-events
// are skipped; a hard decision failure leaves the event unclassified rather
// than treating it as anomalous.
func (d *Detector) Analyze(ctx context.Context, events []model.Event) []model.Threat {
	for _, event := range events {
		if event.IsError() {
			log.Debug().Str("event_id", event.ID).Msg("Skipping error-marker event")
			continue
		}

		fields, err := d.decider.Decide(ctx, oracle.TaskAnomaly, event, anomalyMaxTokens, anomalyTemperature)
		if err != nil {
			log.Warn().Err(err).Str("event_id", event.ID).Msg("Anomaly decision failed, leaving event unclassified")
			continue
		}

		anomalous, _ := fields.Bool("is_anomaly")
		if !anomalous {
			continue
		}

		threat := model.Threat{
			ID:        uuid.NewString(),
			Timestamp: time.Now(),
			Severity:  d.randomSeverity(),
			Details:   "Anomaly detected: " + event.Summary(),
			SourceIP:  event.SourceIP,
		}

		d.mu.Lock()
		d.threats = append(d.threats, threat)
		d.mu.Unlock()

		log.Info().
			Str("threat_id", threat.ID).
			Str("severity", string(threat.Severity)).
			Str("source_ip", threat.SourceIP).
			Msg("Threat detected")
	}

	return d.Threats()
}

// Threats returns a copy of the accumulated threats in detection order.
func (d *Detector) Threats() []model.Threat {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]model.Threat, len(d.threats))
	copy(out, d.threats)
	return out
}

func (d *Detector) randomSeverity() model.Severity {
	d.mu.Lock()
	defer d.mu.Unlock()
	return model.Severities[d.rng.Intn(len(model.Severities))]
}
