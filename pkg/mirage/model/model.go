// Package model defines the records that flow through a deception cycle:
// raw telemetry events, the threats derived from them, the decoys raised in
// response, and the alerts and responses produced while those decoys are live.
package model

import (
	"fmt"
	"time"
)

// Severity classifies how serious a detected threat is considered to be.
type Severity string

const (
	// SeverityLow marks threats that warrant tracking but no urgency
	SeverityLow Severity = "low"
	// SeverityMedium marks threats that should be reviewed promptly
	SeverityMedium Severity = "medium"
	// SeverityHigh marks threats that demand immediate attention
	SeverityHigh Severity = "high"
)

// Severities lists all severity labels a threat may carry.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh}

// DecoyType identifies the kind of deceptive asset a decoy represents.
type DecoyType string

const (
	// DecoyFakeFile is a planted file that should never be read legitimately
	DecoyFakeFile DecoyType = "fake_file"
	// DecoyHoneypotService is a fake network service listening for probes
	DecoyHoneypotService DecoyType = "honeypot_service"
	// DecoyUser is a planted account with no legitimate owner
	DecoyUser DecoyType = "decoy_user"
	// DecoyFallback is a generic decoy raised when synthesis could not
	// consult the decision service
	DecoyFallback DecoyType = "fallback_decoy"
)

// SynthesizedDecoyTypes are the types the synthesizer picks from when it has
// to fabricate a decoy locally.
var SynthesizedDecoyTypes = []DecoyType{DecoyFakeFile, DecoyHoneypotService, DecoyUser}

// ResponseAction is a mitigation chosen for a confirmed decoy interaction.
type ResponseAction string

const (
	// ActionBlockIP blocks the offending source address at the perimeter
	ActionBlockIP ResponseAction = "block_ip"
	// ActionAlertAdmin pages an operator without touching the network
	ActionAlertAdmin ResponseAction = "alert_admin"
	// ActionIsolateSystem quarantines the affected host
	ActionIsolateSystem ResponseAction = "isolate_system"
)

// ResponseActions lists every mitigation the dispatcher may select.
var ResponseActions = []ResponseAction{ActionBlockIP, ActionAlertAdmin, ActionIsolateSystem}

// StatusDeployed is the only deployment status the registry records today.
const StatusDeployed = "deployed"

// Event is a raw telemetry record as produced by the telemetry collaborator.
// Events are immutable once created. A non-empty Error field marks an
// error pseudo-event emitted when the upstream fetch failed; such records
// carry no usable telemetry and must be skipped by analysis.
type Event struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	SourceIP      string    `json:"source_ip"`
	DestinationIP string    `json:"destination_ip"`
	Port          int       `json:"port"`
	Protocol      string    `json:"protocol"`
	EventType     string    `json:"event"`
	User          string    `json:"user"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
}

// IsError reports whether the event is an error marker rather than telemetry.
func (e Event) IsError() bool {
	return e.Error != ""
}

// Summary renders the event as a single line suitable for threat details.
func (e Event) Summary() string {
	return fmt.Sprintf("%s %s from %s to %s:%d by %s (%s)",
		e.Protocol, e.EventType, e.SourceIP, e.DestinationIP, e.Port, e.User, e.Status)
}

// Threat is an anomalous event as judged by the decision service.
type Threat struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity"`
	Details   string    `json:"details"`
	SourceIP  string    `json:"source_ip"`
}

// Decoy is a fabricated asset targeted at the source of a threat. A decoy is
// never mutated after creation; one that fails validation is simply withheld
// from deployment.
type Decoy struct {
	ID        string    `json:"id"`
	Type      DecoyType `json:"type"`
	Target    string    `json:"target"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks that the decoy is schema-complete. Every synthesis path is
// required to produce a decoy that passes this check.
func (d Decoy) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("decoy missing id")
	}
	if d.Type == "" {
		return fmt.Errorf("decoy %s missing type", d.ID)
	}
	if d.Target == "" {
		return fmt.Errorf("decoy %s missing target", d.ID)
	}
	if d.Details == "" {
		return fmt.Errorf("decoy %s missing details", d.ID)
	}
	if d.CreatedAt.IsZero() {
		return fmt.Errorf("decoy %s missing creation timestamp", d.ID)
	}
	return nil
}

// Deployment records that a validated decoy is live. Its existence is the
// sole signal that a decoy is eligible for monitoring.
type Deployment struct {
	DecoyID   string    `json:"decoy_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details"`
}

// ValidationRecord captures one validator verdict for a decoy.
type ValidationRecord struct {
	DecoyID   string    `json:"decoy_id"`
	Valid     bool      `json:"is_valid"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details"`
}

// Alert reports a suspected unauthorized interaction with a deployed decoy.
type Alert struct {
	ID        string    `json:"id"`
	DecoyID   string    `json:"decoy_id"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details"`
}

// Response records the mitigation chosen for an alert.
type Response struct {
	AlertID   string         `json:"alert_id"`
	Timestamp time.Time      `json:"timestamp"`
	Action    ResponseAction `json:"action"`
	Details   string         `json:"details"`
}

// Pattern summarizes correlations across one cycle's threats and alerts.
type Pattern struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Details       string    `json:"details"`
	CommonSources []string  `json:"common_sources"`
}

// LogEntry is one record in the cycle's append-only event log.
type LogEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Step      string         `json:"step"`
	Fields    map[string]any `json:"fields,omitempty"`
}
