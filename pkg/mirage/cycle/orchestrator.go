// Package cycle drives one full deception cycle end to end: gather
// telemetry, detect threats, raise and validate decoys, deploy the
// convincing ones, monitor them, respond to interactions, and correlate
// patterns. The orchestrator owns no decision logic of its own; it is pure
// sequencing and log aggregation.
package cycle

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/TFMV/mirage/pkg/mirage/decoy"
	"github.com/TFMV/mirage/pkg/mirage/detect"
	"github.com/TFMV/mirage/pkg/mirage/model"
	"github.com/TFMV/mirage/pkg/mirage/monitor"
	"github.com/TFMV/mirage/pkg/mirage/pattern"
	"github.com/TFMV/mirage/pkg/mirage/telemetry"
)

// Gatherer supplies telemetry events for a cycle. The production
// implementation fetches from the telemetry collaborator; tests supply
// fixed batches.
type Gatherer interface {
	Fetch(ctx context.Context) []model.Event
}

// Summary is the terminal result of one cycle: its status plus the full
// event log. Raw failures never surface here; degraded decisions appear as
// labeled fallback records inside the log.
type Summary struct {
	Status string           `json:"status"`
	Log    []model.LogEntry `json:"logs"`
}

// StatusCompleted is the status of every cycle that ran to its terminal
// state; per-item failures are absorbed along the way.
const StatusCompleted = "completed"

// Orchestrator sequences the deception stages and threads each stage's
// outputs into the next. Cycle-scoped outputs are owned by the orchestrator
// for the duration of a cycle; stages receive inputs and return new records.
type Orchestrator struct {
	gatherer    Gatherer
	detector    *detect.Detector
	synthesizer *decoy.Synthesizer
	validator   *decoy.Validator
	registry    *decoy.Registry
	monitor     *monitor.Monitor
	dispatcher  *monitor.Dispatcher
	correlator  *pattern.Correlator
	log         *EventLog
	metrics     *telemetry.Metrics
}

// New assembles an orchestrator from its stages. The metrics handle may be
// nil.
func New(
	gatherer Gatherer,
	detector *detect.Detector,
	synthesizer *decoy.Synthesizer,
	validator *decoy.Validator,
	registry *decoy.Registry,
	mon *monitor.Monitor,
	dispatcher *monitor.Dispatcher,
	correlator *pattern.Correlator,
	eventLog *EventLog,
	metrics *telemetry.Metrics,
) *Orchestrator {
	return &Orchestrator{
		gatherer:    gatherer,
		detector:    detector,
		synthesizer: synthesizer,
		validator:   validator,
		registry:    registry,
		monitor:     mon,
		dispatcher:  dispatcher,
		correlator:  correlator,
		log:         eventLog,
		metrics:     metrics,
	}
}

// Log exposes the orchestrator's event log, shared with the ingestion
// endpoint.
func (o *Orchestrator) Log() *EventLog {
	return o.log
}

// Run executes one full cycle and returns its summary. Within the cycle,
// threats follow event arrival order, decoys and deployments follow threat
// order, and alerts follow deployment order; the log preserves emission
// order across all stages. Decision failures are absorbed at stage
// boundaries, so the cycle always completes.
func (o *Orchestrator) Run(ctx context.Context) Summary {
	// Gather
	events := o.gatherer.Fetch(ctx)
	o.log.Append("data_gathering", map[string]any{"data_count": len(events)})

	// Detect
	threatsBefore := len(o.detector.Threats())
	threats := o.detector.Analyze(ctx, events)
	newThreats := threats[threatsBefore:]
	o.log.Append("analysis", map[string]any{"threats_found": len(newThreats)})
	o.metrics.RecordEventsIngested(len(events))
	o.metrics.RecordThreats(len(newThreats))

	// Synthesize, validate, deploy once per threat, independently. A
	// rejected decoy ends its loop iteration with nothing but the
	// validation record.
	for _, threat := range newThreats {
		d := o.synthesizer.Synthesize(ctx, threat)
		valid, record := o.validator.Validate(ctx, d)
		if !valid {
			log.Debug().Str("decoy_id", d.ID).Str("details", record.Details).Msg("Decoy withheld from deployment")
			o.metrics.RecordRejection()
			continue
		}
		deployment, err := o.registry.Deploy(d)
		if err != nil {
			// Unreachable for decoys from the synthesizer, which are
			// schema-complete on every path.
			log.Error().Err(err).Str("decoy_id", d.ID).Msg("Deployment refused")
			continue
		}
		o.log.Append("deployment", map[string]any{"decoy_id": deployment.DecoyID})
		o.metrics.RecordDeployment()
	}

	// Monitor
	alertsBefore := len(o.monitor.Alerts())
	alerts := o.monitor.Sweep(ctx, o.registry.Deployments())
	newAlerts := alerts[alertsBefore:]
	o.log.Append("monitoring", map[string]any{"alerts_found": len(newAlerts)})
	o.metrics.RecordAlerts(len(newAlerts))

	// Respond, once per alert from this cycle's sweep
	for _, alert := range newAlerts {
		response := o.dispatcher.Respond(alert)
		o.log.Append("response", map[string]any{"action": string(response.Action)})
		o.metrics.RecordResponse(string(response.Action))
	}

	// Correlate
	p := o.correlator.Correlate(ctx, newThreats, newAlerts)
	o.log.Append("pattern_analysis", map[string]any{"pattern_id": p.ID, "common_sources": len(p.CommonSources)})

	o.metrics.RecordCycle()
	log.Info().
		Int("events", len(events)).
		Int("threats", len(newThreats)).
		Int("alerts", len(newAlerts)).
		Msg("Deception cycle completed")

	return Summary{Status: StatusCompleted, Log: o.log.Entries()}
}
