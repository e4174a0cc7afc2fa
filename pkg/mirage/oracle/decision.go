// Package oracle provides the decision-service client every pipeline stage
// uses to obtain a judgment, together with the fallback policy applied when
// the service is slow, erroring, or returns malformed data. Callers only
// ever receive a usable set of decision fields or an explicit error, never
// a raw malformed payload.
package oracle

import (
	"context"
	"fmt"
)

// Task tags the kind of judgment being requested.
type Task string

const (
	// TaskAnomaly asks whether a telemetry event is anomalous
	TaskAnomaly Task = "anomaly"
	// TaskSynthesis asks for a decoy tailored to a threat
	TaskSynthesis Task = "synthesis"
	// TaskValidity asks whether a decoy is convincing enough to deploy
	TaskValidity Task = "validity"
	// TaskAccess asks whether a deployed decoy has been interacted with
	TaskAccess Task = "access"
	// TaskCorrelation asks for patterns across threats and alerts
	TaskCorrelation Task = "correlation"
)

// BoolKey returns the boolean field a task's decision is expected to carry,
// or "" for tasks whose decisions are structured objects.
func (t Task) BoolKey() string {
	switch t {
	case TaskAnomaly:
		return "is_anomaly"
	case TaskValidity:
		return "is_valid"
	case TaskAccess:
		return "is_accessed"
	}
	return ""
}

// Fields is a normalized decision payload. Accessors return ok=false rather
// than panicking when a field is absent or of the wrong shape, so stages can
// fall back to local synthesis without speculative probing.
type Fields map[string]any

// Bool returns the named boolean field.
func (f Fields) Bool(key string) (bool, bool) {
	v, ok := f[key].(bool)
	return v, ok
}

// Object returns the named nested object as Fields.
func (f Fields) Object(key string) (Fields, bool) {
	switch v := f[key].(type) {
	case Fields:
		return v, true
	case map[string]any:
		return Fields(v), true
	}
	return nil, false
}

// String returns the named string field.
func (f Fields) String(key string) (string, bool) {
	v, ok := f[key].(string)
	return v, ok
}

// Decider is the judgment surface the pipeline stages depend on. The
// production implementation is Client; tests substitute scripted deciders.
type Decider interface {
	// Decide requests a judgment for the given task. The payload is
	// serialized as the request context. A non-nil error is a hard
	// failure: the call itself could not be completed. Soft failures
	// (unusable payloads) are absorbed by the fallback heuristic and
	// surface as ordinary fields.
	Decide(ctx context.Context, task Task, payload any, maxTokens int, temperature float64) (Fields, error)
}

// OracleError is a hard failure of a decision-service call. Stages recover
// from it locally; it never propagates past a stage boundary.
type OracleError struct {
	Task Task
	Err  error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("oracle %s decision failed: %v", e.Task, e.Err)
}

func (e *OracleError) Unwrap() error {
	return e.Err
}
