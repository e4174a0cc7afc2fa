// Package telemetry exposes Prometheus metrics for the deception cycle and
// its decision-service dependency.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/TFMV/mirage/pkg/mirage/oracle"
)

// Metrics holds the collectors for the deception pipeline. A nil *Metrics is
// safe to use everywhere; all record methods are no-ops on nil.
type Metrics struct {
	registry *prometheus.Registry
	server   *http.Server

	eventsIngested    prometheus.Counter
	threatsDetected   prometheus.Counter
	decoysDeployed    prometheus.Counter
	decoysRejected    prometheus.Counter
	alertsRaised      prometheus.Counter
	responses         *prometheus.CounterVec
	cyclesCompleted   prometheus.Counter
	oracleHardFailure *prometheus.CounterVec
	oracleSoftFailure *prometheus.CounterVec
}

// New creates and registers the pipeline metrics under the given namespace.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "mirage"
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		eventsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_ingested_total",
			Help:      "Telemetry events accepted for analysis",
		}),
		threatsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threats_detected_total",
			Help:      "Threats produced by anomaly analysis",
		}),
		decoysDeployed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decoys_deployed_total",
			Help:      "Decoys that passed validation and were deployed",
		}),
		decoysRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decoys_rejected_total",
			Help:      "Decoys withheld from deployment by validation",
		}),
		alertsRaised: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alerts raised for decoy interactions",
		}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Mitigations dispatched, by action",
		}, []string{"action"}),
		cyclesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_completed_total",
			Help:      "Deception cycles run to completion",
		}),
		oracleHardFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_hard_failures_total",
			Help:      "Decision calls that could not be completed, by task",
		}, []string{"task"}),
		oracleSoftFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_soft_failures_total",
			Help:      "Decision payloads replaced by the default heuristic, by task",
		}, []string{"task"}),
	}

	registry.MustRegister(
		m.eventsIngested,
		m.threatsDetected,
		m.decoysDeployed,
		m.decoysRejected,
		m.alertsRaised,
		m.responses,
		m.cyclesCompleted,
		m.oracleHardFailure,
		m.oracleSoftFailure,
	)
	return m
}

// OracleHooks returns hooks that feed decision-outcome counters, for wiring
// into the oracle client.
func (m *Metrics) OracleHooks() oracle.Hooks {
	if m == nil {
		return oracle.Hooks{}
	}
	return oracle.Hooks{
		OnHardFailure: func(task oracle.Task) { m.oracleHardFailure.WithLabelValues(string(task)).Inc() },
		OnSoftFailure: func(task oracle.Task) { m.oracleSoftFailure.WithLabelValues(string(task)).Inc() },
	}
}

// RecordEventsIngested adds to the ingested-event counter.
func (m *Metrics) RecordEventsIngested(n int) {
	if m != nil {
		m.eventsIngested.Add(float64(n))
	}
}

// RecordThreats adds to the detected-threat counter.
func (m *Metrics) RecordThreats(n int) {
	if m != nil {
		m.threatsDetected.Add(float64(n))
	}
}

// RecordDeployment counts one deployed decoy.
func (m *Metrics) RecordDeployment() {
	if m != nil {
		m.decoysDeployed.Inc()
	}
}

// RecordRejection counts one decoy withheld by validation.
func (m *Metrics) RecordRejection() {
	if m != nil {
		m.decoysRejected.Inc()
	}
}

// RecordAlerts adds to the alert counter.
func (m *Metrics) RecordAlerts(n int) {
	if m != nil {
		m.alertsRaised.Add(float64(n))
	}
}

// RecordResponse counts one dispatched mitigation by action.
func (m *Metrics) RecordResponse(action string) {
	if m != nil {
		m.responses.WithLabelValues(action).Inc()
	}
}

// RecordCycle counts one completed cycle.
func (m *Metrics) RecordCycle() {
	if m != nil {
		m.cyclesCompleted.Inc()
	}
}

// Serve starts the metrics HTTP endpoint in the background.
func (m *Metrics) Serve(addr string) {
	if m == nil {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	m.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Metrics endpoint listening")
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Metrics endpoint failed")
		}
	}()
}

// Shutdown stops the metrics endpoint, if it was started.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}
