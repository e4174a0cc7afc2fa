// Package gather provides the telemetry-source collaborator. The production
// integration is mocked: Fetch fabricates a small batch of plausible network
// events per call, the way a perimeter sensor feed would deliver them.
package gather

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/TFMV/mirage/pkg/mirage/model"
)

var (
	protocols  = []string{"TCP", "UDP", "HTTP"}
	eventTypes = []string{"login_attempt", "file_access", "process_start"}
	statuses   = []string{"success", "failed"}
)

// Source simulates an external telemetry API. On fetch failure it returns a
// single error-marker pseudo-event so downstream stages can tell "no data"
// from "fetch broke".
type Source struct {
	endpoint string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource creates a telemetry source for the given (nominal) endpoint.
func NewSource(endpoint string) *Source {
	return &Source{
		endpoint: endpoint,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Fetch returns the next batch of telemetry events, between one and five per
// call.
func (s *Source) Fetch(ctx context.Context) []model.Event {
	if err := ctx.Err(); err != nil {
		return []model.Event{{Error: fmt.Sprintf("API fetch failed: %v", err)}}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count := s.rng.Intn(5) + 1
	events := make([]model.Event, 0, count)
	for i := 0; i < count; i++ {
		events = append(events, model.Event{
			ID:            uuid.NewString(),
			Timestamp:     time.Now(),
			SourceIP:      fmt.Sprintf("192.168.1.%d", s.rng.Intn(255)+1),
			DestinationIP: fmt.Sprintf("192.168.1.%d", s.rng.Intn(255)+1),
			Port:          s.rng.Intn(65535) + 1,
			Protocol:      protocols[s.rng.Intn(len(protocols))],
			EventType:     eventTypes[s.rng.Intn(len(eventTypes))],
			User:          fmt.Sprintf("user_%d", s.rng.Intn(100)+1),
			Status:        statuses[s.rng.Intn(len(statuses))],
		})
	}

	log.Debug().Int("count", count).Str("endpoint", s.endpoint).Msg("Fetched telemetry batch")
	return events
}
