package decoy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/TFMV/mirage/pkg/mirage/model"
	"github.com/TFMV/mirage/pkg/mirage/oracle"
)

const (
	validityMaxTokens   = 50
	validityTemperature = 0.3
)

// Validator gates deployment: a decoy is deployed only if the decision
// service judged it convincing. Rejection does not delete the decoy; it is
// simply withheld from the registry.
type Validator struct {
	decider oracle.Decider

	mu      sync.Mutex
	records []model.ValidationRecord
}

// NewValidator creates a decoy validator backed by the given decider.
func NewValidator(decider oracle.Decider) *Validator {
	return &Validator{decider: decider}
}

// Validate asks whether the decoy is convincing and records the verdict. A
// hard decision failure counts as a rejection: the gate stays conservative
// when no judgment is available.
func (v *Validator) Validate(ctx context.Context, decoy model.Decoy) (bool, model.ValidationRecord) {
	valid := false

	fields, err := v.decider.Decide(ctx, oracle.TaskValidity, decoy, validityMaxTokens, validityTemperature)
	if err != nil {
		log.Warn().Err(err).Str("decoy_id", decoy.ID).Msg("Validation decision failed, rejecting decoy")
	} else {
		valid, _ = fields.Bool("is_valid")
	}

	outcome := "failed"
	if valid {
		outcome = "successful"
	}
	record := model.ValidationRecord{
		DecoyID:   decoy.ID,
		Valid:     valid,
		Timestamp: time.Now(),
		Details:   fmt.Sprintf("Validation %s for %s", outcome, decoy.Type),
	}

	v.mu.Lock()
	v.records = append(v.records, record)
	v.mu.Unlock()

	return valid, record
}

// Records returns a copy of all validation verdicts in order.
func (v *Validator) Records() []model.ValidationRecord {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]model.ValidationRecord, len(v.records))
	copy(out, v.records)
	return out
}
