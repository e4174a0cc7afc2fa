package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/TFMV/mirage/pkg/mirage/model"
)

// csvHeader is the stable column order for the mirrored event store.
var csvHeader = []string{
	"id", "timestamp", "source_ip", "destination_ip", "port",
	"protocol", "event", "user", "status", "error",
}

// csvStore mirrors ingested events into an append-only CSV file. The header
// is written exactly once, when the file is first created.
type csvStore struct {
	mu   sync.Mutex
	path string
}

func newCSVStore(path string) *csvStore {
	return &csvStore{path: path}
}

func (s *csvStore) append(events []model.Event) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, statErr := os.Stat(s.path)
	needHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("failed to write event store header: %w", err)
		}
	}

	for _, event := range events {
		row := []string{
			event.ID,
			event.Timestamp.Format(time.RFC3339Nano),
			event.SourceIP,
			event.DestinationIP,
			strconv.Itoa(event.Port),
			event.Protocol,
			event.EventType,
			event.User,
			event.Status,
			event.Error,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write event row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}
