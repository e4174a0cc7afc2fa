// Package decoy covers the lifecycle of a deceptive asset: synthesis from a
// threat, validation of its realism, and registration as deployed.
package decoy

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/TFMV/mirage/pkg/mirage/model"
	"github.com/TFMV/mirage/pkg/mirage/oracle"
)

const (
	synthesisMaxTokens   = 100
	synthesisTemperature = 0.5
)

// Synthesizer produces a decoy for a threat. Every path (service-supplied,
// locally fabricated, or fallback on hard failure) yields a complete,
// schema-valid decoy; there is no path that propagates a partial object.
type Synthesizer struct {
	decider oracle.Decider

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSynthesizer creates a decoy synthesizer backed by the given decider.
func NewSynthesizer(decider oracle.Decider) *Synthesizer {
	return &Synthesizer{
		decider: decider,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Synthesize builds a decoy targeted at the threat's source. A hard decision
// failure produces a fallback decoy; a decision without a usable decoy
// object produces a locally fabricated one.
func (s *Synthesizer) Synthesize(ctx context.Context, threat model.Threat) model.Decoy {
	target := threat.SourceIP
	if target == "" {
		target = "unknown"
	}

	fields, err := s.decider.Decide(ctx, oracle.TaskSynthesis, threat, synthesisMaxTokens, synthesisTemperature)
	if err != nil {
		log.Warn().Err(err).Str("threat_id", threat.ID).Msg("Decoy synthesis decision failed, raising fallback decoy")
		return model.Decoy{
			ID:        uuid.NewString(),
			Type:      model.DecoyFallback,
			Target:    target,
			Details:   "Fallback decoy: decision service unavailable",
			CreatedAt: time.Now(),
		}
	}

	if supplied, ok := decoyFromFields(fields); ok {
		log.Debug().Str("decoy_id", supplied.ID).Str("threat_id", threat.ID).Msg("Using service-supplied decoy")
		return supplied
	}

	decoyType := s.randomType()
	return model.Decoy{
		ID:        uuid.NewString(),
		Type:      decoyType,
		Target:    target,
		Details:   fmt.Sprintf("Decoy %s for %s", decoyType, threat.Details),
		CreatedAt: time.Now(),
	}
}

// decoyFromFields extracts a fully formed decoy from the decision, if the
// service supplied one. Anything incomplete is discarded in favor of local
// fabrication.
func decoyFromFields(fields oracle.Fields) (model.Decoy, bool) {
	obj, ok := fields.Object("decoy")
	if !ok {
		return model.Decoy{}, false
	}

	id, _ := obj.String("id")
	typ, _ := obj.String("type")
	target, _ := obj.String("target")
	details, _ := obj.String("details")
	createdAt, _ := obj.String("created_at")

	decoy := model.Decoy{
		ID:      id,
		Type:    model.DecoyType(typ),
		Target:  target,
		Details: details,
	}
	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		decoy.CreatedAt = ts
	}

	if decoy.Validate() != nil {
		return model.Decoy{}, false
	}
	switch decoy.Type {
	case model.DecoyFakeFile, model.DecoyHoneypotService, model.DecoyUser, model.DecoyFallback:
	default:
		return model.Decoy{}, false
	}
	return decoy, true
}

func (s *Synthesizer) randomType() model.DecoyType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.SynthesizedDecoyTypes[s.rng.Intn(len(model.SynthesizedDecoyTypes))]
}
