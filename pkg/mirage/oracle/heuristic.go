package oracle

import (
	"math/rand"
	"sync"
)

// Heuristic supplies a default decision when the service call succeeded but
// the payload was not usable for the requested task. It is injected into the
// client as a strategy so it can be swapped for a real model later without
// touching stage logic.
type Heuristic interface {
	// Default returns substitute decision fields for the task.
	Default(task Task) Fields
}

// CoinFlip is the placeholder default-decision heuristic: a biased coin per
// task, with the bias chosen to roughly match observed base rates (most
// events are not worth a decoy; most synthesized decoys are serviceable;
// most decoys are never touched). It is explicitly a stand-in, not a model.
type CoinFlip struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewCoinFlip returns a CoinFlip heuristic driven by the given source. A
// nil-safe default is available via NewCoinFlipSeeded.
func NewCoinFlip(rng *rand.Rand) *CoinFlip {
	return &CoinFlip{rng: rng}
}

// NewCoinFlipSeeded returns a CoinFlip with its own seeded source, for
// callers that do not need reproducibility.
func NewCoinFlipSeeded(seed int64) *CoinFlip {
	return NewCoinFlip(rand.New(rand.NewSource(seed)))
}

// Default implements Heuristic. Object-valued tasks (synthesis, correlation)
// get empty fields: the stage synthesizes the object locally.
func (c *CoinFlip) Default(task Task) Fields {
	switch task {
	case TaskAnomaly:
		return Fields{"is_anomaly": c.chance(0.7)}
	case TaskValidity:
		return Fields{"is_valid": c.chance(0.8)}
	case TaskAccess:
		return Fields{"is_accessed": c.chance(0.3)}
	}
	return Fields{}
}

func (c *CoinFlip) chance(p float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Float64() < p
}
