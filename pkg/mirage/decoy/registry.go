package decoy

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/TFMV/mirage/pkg/mirage/model"
)

// Registry records which decoys are live. It is pure bookkeeping: no
// decision-service call, and the only failure path is a decoy that is
// missing required fields, which is a programmer error upstream.
type Registry struct {
	mu       sync.Mutex
	deployed []model.Deployment
}

// NewRegistry creates an empty deployment registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Deploy records the decoy as deployed and returns the deployment. The
// deployment's existence is the sole signal that the decoy is live for
// monitoring.
func (r *Registry) Deploy(decoy model.Decoy) (model.Deployment, error) {
	if err := decoy.Validate(); err != nil {
		return model.Deployment{}, fmt.Errorf("refusing to deploy incomplete decoy: %w", err)
	}

	deployment := model.Deployment{
		DecoyID:   decoy.ID,
		Status:    model.StatusDeployed,
		Timestamp: time.Now(),
		Details:   fmt.Sprintf("Deployed %s to target %s", decoy.Type, decoy.Target),
	}

	r.mu.Lock()
	r.deployed = append(r.deployed, deployment)
	r.mu.Unlock()

	log.Info().Str("decoy_id", decoy.ID).Str("type", string(decoy.Type)).Str("target", decoy.Target).Msg("Decoy deployed")
	return deployment, nil
}

// Deployments returns a copy of all recorded deployments in order.
func (r *Registry) Deployments() []model.Deployment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Deployment, len(r.deployed))
	copy(out, r.deployed)
	return out
}
