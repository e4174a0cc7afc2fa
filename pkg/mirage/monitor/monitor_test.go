package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/mirage/pkg/mirage/model"
	"github.com/TFMV/mirage/pkg/mirage/oracle"
)

// sequenceDecider returns one scripted outcome per call, in order.
type sequenceDecider struct {
	outcomes []func() (oracle.Fields, error)
	calls    int
}

func (s *sequenceDecider) Decide(_ context.Context, _ oracle.Task, _ any, _ int, _ float64) (oracle.Fields, error) {
	i := s.calls
	s.calls++
	if i >= len(s.outcomes) {
		return oracle.Fields{}, nil
	}
	return s.outcomes[i]()
}

func deployments(n int) []model.Deployment {
	out := make([]model.Deployment, n)
	for i := range out {
		out[i] = model.Deployment{
			DecoyID:   "decoy-" + string(rune('a'+i)),
			Status:    model.StatusDeployed,
			Timestamp: time.Now(),
			Details:   "Deployed fake_file to target 10.0.0.5",
		}
	}
	return out
}

func TestSweepRaisesAlertsForAccessedDecoys(t *testing.T) {
	accessed := func() (oracle.Fields, error) { return oracle.Fields{"is_accessed": true}, nil }
	untouched := func() (oracle.Fields, error) { return oracle.Fields{"is_accessed": false}, nil }

	decider := &sequenceDecider{outcomes: []func() (oracle.Fields, error){accessed, untouched, accessed}}
	mon := New(decider)

	alerts := mon.Sweep(context.Background(), deployments(3))

	assert.Equal(t, 3, decider.calls)
	require.Len(t, alerts, 2)
	assert.Equal(t, "decoy-a", alerts[0].DecoyID)
	assert.Equal(t, "decoy-c", alerts[1].DecoyID)
	for _, alert := range alerts {
		assert.NotEmpty(t, alert.ID)
		assert.Contains(t, alert.Details, "Unauthorized access")
	}
}

func TestSweepSkipsDeploymentOnHardFailure(t *testing.T) {
	failing := func() (oracle.Fields, error) { return nil, errors.New("service down") }
	accessed := func() (oracle.Fields, error) { return oracle.Fields{"is_accessed": true}, nil }

	decider := &sequenceDecider{outcomes: []func() (oracle.Fields, error){failing, accessed}}
	mon := New(decider)

	alerts := mon.Sweep(context.Background(), deployments(2))

	assert.Equal(t, 2, decider.calls, "failure on one deployment must not stop the pass")
	require.Len(t, alerts, 1)
	assert.Equal(t, "decoy-b", alerts[0].DecoyID)
}

func TestSweepAccumulatesAcrossPasses(t *testing.T) {
	accessed := func() (oracle.Fields, error) { return oracle.Fields{"is_accessed": true}, nil }
	decider := &sequenceDecider{outcomes: []func() (oracle.Fields, error){accessed, accessed}}
	mon := New(decider)

	first := mon.Sweep(context.Background(), deployments(1))
	second := mon.Sweep(context.Background(), deployments(1))

	assert.Len(t, first, 1)
	assert.Len(t, second, 2)
}

type capturingRecorder struct {
	steps []string
}

func (c *capturingRecorder) Append(step string, _ map[string]any) {
	c.steps = append(c.steps, step)
}

func TestDispatcherRecordsAndLogsResponse(t *testing.T) {
	recorder := &capturingRecorder{}
	dispatcher := NewDispatcher(nil, recorder)

	alert := model.Alert{ID: "alert-1", DecoyID: "decoy-a", Timestamp: time.Now(), Details: "Unauthorized access detected"}
	response := dispatcher.Respond(alert)

	assert.Equal(t, "alert-1", response.AlertID)
	assert.Contains(t, model.ResponseActions, response.Action)
	assert.Contains(t, response.Details, alert.Details)
	assert.Equal(t, []string{"threat_response"}, recorder.steps)
	assert.Len(t, dispatcher.Responses(), 1)
}

func TestDispatcherUsesInjectedPolicy(t *testing.T) {
	policy := func(model.Alert) model.ResponseAction { return model.ActionIsolateSystem }
	dispatcher := NewDispatcher(policy, nil)

	response := dispatcher.Respond(model.Alert{ID: "alert-2", Details: "x"})

	assert.Equal(t, model.ActionIsolateSystem, response.Action)
}
