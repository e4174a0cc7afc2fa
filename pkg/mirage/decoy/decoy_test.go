package decoy

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

type scriptedDecider struct {
	fields oracle.Fields
	err    error
	calls  int
}

func (s *scriptedDecider) Decide(_ context.Context, _ oracle.Task, _ any, _ int, _ float64) (oracle.Fields, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.fields, nil
}

var testThreat = model.Threat{
	ID:        "threat-1",
	Timestamp: time.Now(),
	Severity:  model.SeverityHigh,
	Details:   "Anomaly detected: TCP login_attempt from 10.0.0.5",
	SourceIP:  "10.0.0.5",
}

func TestSynthesizeFallbackOnHardFailure(t *testing.T) {
	decider := &scriptedDecider{err: errors.New("connection refused")}
	synth := NewSynthesizer(decider)

	decoy := synth.Synthesize(context.Background(), testThreat)

	require.NoError(t, decoy.Validate())
	assert.Equal(t, model.DecoyFallback, decoy.Type)
	assert.Equal(t, "10.0.0.5", decoy.Target)
	assert.Contains(t, decoy.Details, "Fallback")
}

func TestSynthesizeUsesServiceSuppliedDecoy(t *testing.T) {
	supplied := map[string]any{
		"id":         "decoy-from-service",
		"type":       "honeypot_service",
		"target":     "10.0.0.5",
		"details":    "SSH honeypot on 2222",
		"created_at": time.Now().Format(time.RFC3339),
	}
	decider := &scriptedDecider{fields: oracle.Fields{"decoy": supplied}}
	synth := NewSynthesizer(decider)

	decoy := synth.Synthesize(context.Background(), testThreat)

	require.NoError(t, decoy.Validate())
	assert.Equal(t, "decoy-from-service", decoy.ID)
	assert.Equal(t, model.DecoyHoneypotService, decoy.Type)
}

func TestSynthesizeLocalWhenDecisionLacksDecoy(t *testing.T) {
	decider := &scriptedDecider{fields: oracle.Fields{"note": "no decoy here"}}
	synth := NewSynthesizer(decider)

	decoy := synth.Synthesize(context.Background(), testThreat)

	require.NoError(t, decoy.Validate())
	assert.Contains(t, model.SynthesizedDecoyTypes, decoy.Type)
	assert.Equal(t, "10.0.0.5", decoy.Target)
	assert.Contains(t, decoy.Details, testThreat.Details)
}

func TestSynthesizeDiscardsPartialServiceDecoy(t *testing.T) {
	// Missing target and details: must not propagate a partial object
	decider := &scriptedDecider{fields: oracle.Fields{"decoy": map[string]any{
		"id":   "partial",
		"type": "fake_file",
	}}}
	synth := NewSynthesizer(decider)

	decoy := synth.Synthesize(context.Background(), testThreat)

	require.NoError(t, decoy.Validate())
	assert.NotEqual(t, "partial", decoy.ID)
}

func TestSynthesizeUnknownTarget(t *testing.T) {
	decider := &scriptedDecider{err: errors.New("down")}
	synth := NewSynthesizer(decider)

	threat := testThreat
	threat.SourceIP = ""
	decoy := synth.Synthesize(context.Background(), threat)

	assert.Equal(t, "unknown", decoy.Target)
}

func TestValidateAcceptAndReject(t *testing.T) {
	accept := NewValidator(&scriptedDecider{fields: oracle.Fields{"is_valid": true}})
	reject := NewValidator(&scriptedDecider{fields: oracle.Fields{"is_valid": false}})

	decoy := model.Decoy{ID: "d1", Type: model.DecoyFakeFile, Target: "10.0.0.5", Details: "planted", CreatedAt: time.Now()}

	ok, record := accept.Validate(context.Background(), decoy)
	assert.True(t, ok)
	assert.True(t, record.Valid)
	assert.Equal(t, "d1", record.DecoyID)
	assert.Contains(t, record.Details, "successful")

	ok, record = reject.Validate(context.Background(), decoy)
	assert.False(t, ok)
	assert.False(t, record.Valid)
	assert.Contains(t, record.Details, "failed")
}

func TestValidateIdempotentForSameDecision(t *testing.T) {
	decider := &scriptedDecider{fields: oracle.Fields{"is_valid": true}}
	validator := NewValidator(decider)
	decoy := model.Decoy{ID: "d1", Type: model.DecoyFakeFile, Target: "t", Details: "x", CreatedAt: time.Now()}

	first, _ := validator.Validate(context.Background(), decoy)
	second, _ := validator.Validate(context.Background(), decoy)

	assert.Equal(t, first, second, "same decoy, same forced decision, same outcome")
	assert.Len(t, validator.Records(), 2)
}

func TestValidateRejectsOnHardFailure(t *testing.T) {
	validator := NewValidator(&scriptedDecider{err: errors.New("timeout")})
	decoy := model.Decoy{ID: "d1", Type: model.DecoyFakeFile, Target: "t", Details: "x", CreatedAt: time.Now()}

	ok, record := validator.Validate(context.Background(), decoy)

	assert.False(t, ok, "no judgment means no deployment")
	assert.False(t, record.Valid)
}

func TestRegistryDeploy(t *testing.T) {
	registry := NewRegistry()
	decoy := model.Decoy{ID: "d1", Type: model.DecoyUser, Target: "10.0.0.9", Details: "planted account", CreatedAt: time.Now()}

	deployment, err := registry.Deploy(decoy)
	require.NoError(t, err)
	assert.Equal(t, "d1", deployment.DecoyID)
	assert.Equal(t, model.StatusDeployed, deployment.Status)
	assert.Contains(t, deployment.Details, "decoy_user")
	assert.Len(t, registry.Deployments(), 1)
}

func TestRegistryRejectsIncompleteDecoy(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Deploy(model.Decoy{ID: "d2"})
	require.Error(t, err)
	assert.Empty(t, registry.Deployments())
}
