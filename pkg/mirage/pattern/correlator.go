// Package pattern correlates a cycle's threats and alerts into a summary
// pattern via the decision service.
package pattern

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/TFMV/mirage/pkg/mirage/model"
	"github.com/TFMV/mirage/pkg/mirage/oracle"
)

const (
	correlationMaxTokens   = 100
	correlationTemperature = 0.5

	// contextLimit bounds how many threats and alerts are sent to the
	// decision service, regardless of cycle size.
	contextLimit = 3
)

// DefaultHistoryLimit bounds the cross-cycle pattern history kept in memory.
const DefaultHistoryLimit = 100

// correlationContext is the payload sent for a correlation decision.
type correlationContext struct {
	Threats []model.Threat `json:"threats"`
	Alerts  []model.Alert  `json:"alerts"`
}

// Correlator produces one pattern per cycle and keeps a bounded history of
// patterns across cycles.
type Correlator struct {
	decider      oracle.Decider
	historyLimit int

	mu       sync.Mutex
	patterns []model.Pattern
}

// New creates a pattern correlator. A historyLimit of zero or below falls
// back to DefaultHistoryLimit.
func New(decider oracle.Decider, historyLimit int) *Correlator {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Correlator{decider: decider, historyLimit: historyLimit}
}

// Correlate asks the decision service for patterns across the cycle's
// threats and alerts. The context sent upstream is capped at the first
// contextLimit of each. On hard failure it emits a fallback pattern with no
// correlated sources; on success without a usable pattern object it
// synthesizes one summarizing counts and up to three source addresses.
func (c *Correlator) Correlate(ctx context.Context, threats []model.Threat, alerts []model.Alert) model.Pattern {
	payload := correlationContext{
		Threats: head(threats, contextLimit),
		Alerts:  head(alerts, contextLimit),
	}

	var pattern model.Pattern
	fields, err := c.decider.Decide(ctx, oracle.TaskCorrelation, payload, correlationMaxTokens, correlationTemperature)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("Correlation decision failed, emitting fallback pattern")
		pattern = model.Pattern{
			ID:            uuid.NewString(),
			Timestamp:     time.Now(),
			Details:       "Fallback pattern: decision service unavailable",
			CommonSources: []string{},
		}
	default:
		if supplied, ok := patternFromFields(fields); ok {
			pattern = supplied
		} else {
			pattern = model.Pattern{
				ID:            uuid.NewString(),
				Timestamp:     time.Now(),
				Details:       fmt.Sprintf("Found %d threats and %d alerts", len(threats), len(alerts)),
				CommonSources: sourceAddresses(threats, contextLimit),
			}
		}
	}

	c.mu.Lock()
	c.patterns = append(c.patterns, pattern)
	if len(c.patterns) > c.historyLimit {
		c.patterns = c.patterns[len(c.patterns)-c.historyLimit:]
	}
	c.mu.Unlock()

	return pattern
}

// Patterns returns a copy of the retained pattern history, oldest first.
func (c *Correlator) Patterns() []model.Pattern {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Pattern, len(c.patterns))
	copy(out, c.patterns)
	return out
}

func patternFromFields(fields oracle.Fields) (model.Pattern, bool) {
	obj, ok := fields.Object("pattern")
	if !ok {
		return model.Pattern{}, false
	}

	id, _ := obj.String("id")
	details, _ := obj.String("details")
	if id == "" || details == "" {
		return model.Pattern{}, false
	}

	pattern := model.Pattern{
		ID:            id,
		Timestamp:     time.Now(),
		Details:       details,
		CommonSources: []string{},
	}
	if ts, ok := obj.String("timestamp"); ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			pattern.Timestamp = parsed
		}
	}
	if raw, ok := obj["common_sources"].([]any); ok {
		for _, entry := range raw {
			if s, ok := entry.(string); ok {
				pattern.CommonSources = append(pattern.CommonSources, s)
			}
		}
	}
	return pattern, true
}

func sourceAddresses(threats []model.Threat, limit int) []string {
	sources := make([]string, 0, limit)
	for _, threat := range head(threats, limit) {
		source := threat.SourceIP
		if source == "" {
			source = "unknown"
		}
		sources = append(sources, source)
	}
	return sources
}

func head[T any](items []T, limit int) []T {
	if len(items) <= limit {
		return items
	}
	return items[:limit]
}
