package cycle

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TFMV/mirage/pkg/mirage/model"
)

// EventLog is the cycle's append-only, emission-ordered record of what
// happened. It is shared between the orchestrator and the ingestion
// endpoint, so appends are safe for concurrent use.
type EventLog struct {
	mu      sync.Mutex
	entries []model.LogEntry
}

// NewEventLog creates an empty event log.
func NewEventLog() *EventLog {
	return &EventLog{}
}

// Append records one structured step entry.
func (l *EventLog) Append(step string, fields map[string]any) {
	entry := model.LogEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Step:      step,
		Fields:    fields,
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a copy of the log in emission order.
func (l *EventLog) Entries() []model.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries recorded so far.
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
