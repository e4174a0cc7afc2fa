package monitor

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/TFMV/mirage/pkg/mirage/model"
)

// ActionPolicy selects a mitigation for an alert. The selection criterion is
// deliberately pluggable: the default policy is unconditioned on alert
// content, and deployments that want severity- or content-aware selection
// swap in their own policy.
type ActionPolicy func(alert model.Alert) model.ResponseAction

// RandomActionPolicy picks uniformly from the fixed mitigation set.
func RandomActionPolicy() ActionPolicy {
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return func(model.Alert) model.ResponseAction {
		mu.Lock()
		defer mu.Unlock()
		return model.ResponseActions[rng.Intn(len(model.ResponseActions))]
	}
}

// Recorder receives structured step records; the cycle's event log satisfies
// it. Responses are appended to the log at dispatch time so the log always
// reflects what was done, not just what was decided.
type Recorder interface {
	Append(step string, fields map[string]any)
}

// Dispatcher picks and records a mitigation per alert. It makes no
// decision-service call.
type Dispatcher struct {
	policy ActionPolicy
	logbk  Recorder

	mu        sync.Mutex
	responses []model.Response
}

// NewDispatcher creates a response dispatcher. A nil policy falls back to
// RandomActionPolicy.
func NewDispatcher(policy ActionPolicy, recorder Recorder) *Dispatcher {
	if policy == nil {
		policy = RandomActionPolicy()
	}
	return &Dispatcher{policy: policy, logbk: recorder}
}

// Respond selects a mitigation for the alert, records it, and appends it to
// the event log.
func (d *Dispatcher) Respond(alert model.Alert) model.Response {
	response := model.Response{
		AlertID:   alert.ID,
		Timestamp: time.Now(),
		Action:    d.policy(alert),
		Details:   "Responded to " + alert.Details,
	}

	d.mu.Lock()
	d.responses = append(d.responses, response)
	d.mu.Unlock()

	if d.logbk != nil {
		d.logbk.Append("threat_response", map[string]any{
			"alert_id": response.AlertID,
			"action":   string(response.Action),
			"details":  response.Details,
		})
	}

	log.Info().Str("alert_id", alert.ID).Str("action", string(response.Action)).Msg("Mitigation dispatched")
	return response
}

// Responses returns a copy of all dispatched responses in order.
func (d *Dispatcher) Responses() []model.Response {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]model.Response, len(d.responses))
	copy(out, d.responses)
	return out
}
