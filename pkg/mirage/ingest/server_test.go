package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/mirage/pkg/mirage/config"
	"github.com/TFMV/mirage/pkg/mirage/detect"
	"github.com/TFMV/mirage/pkg/mirage/oracle"
)

// affirmativeDecider marks every event anomalous.
type affirmativeDecider struct{}

func (affirmativeDecider) Decide(_ context.Context, task oracle.Task, _ any, _ int, _ float64) (oracle.Fields, error) {
	return oracle.Fields{task.BoolKey(): true}, nil
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	csvPath := filepath.Join(t.TempDir(), "event_data.csv")
	cfg := config.IngestConfig{Host: "127.0.0.1", Port: 0, CSVPath: csvPath, RateLimit: 0, RateBurst: 0}
	return NewServer(cfg, detect.New(affirmativeDecider{}), nil), csvPath
}

func postEvents(t *testing.T, server *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

const sampleBatch = `{"events": [
	{"id": "e1", "timestamp": "2025-06-01T10:00:00Z", "source_ip": "10.0.0.5",
	 "destination_ip": "10.0.0.9", "port": 4444, "protocol": "TCP",
	 "event": "login_attempt", "user": "user_7", "status": "failed"},
	{"id": "e2", "timestamp": "2025-06-01T10:00:01Z", "source_ip": "10.0.0.6",
	 "destination_ip": "10.0.0.9", "port": 80, "protocol": "HTTP",
	 "event": "file_access", "user": "user_8", "status": "success"}
]}`

func TestHandleEventsAnalyzesAndResponds(t *testing.T) {
	server, _ := newTestServer(t)

	rec := postEvents(t, server, sampleBatch)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ingestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 2, resp.ThreatsFound)
	assert.Len(t, resp.Threats, 2)
}

func TestHandleEventsMirrorsToCSV(t *testing.T) {
	server, csvPath := newTestServer(t)

	postEvents(t, server, sampleBatch)
	postEvents(t, server, sampleBatch)

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	// One header plus two rows per request
	require.Len(t, rows, 5, "header must be written exactly once")
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "e1", rows[1][0])
	assert.Equal(t, "4444", rows[1][4])
}

func TestHandleEventsRejectsBadBody(t *testing.T) {
	server, csvPath := newTestServer(t)

	rec := postEvents(t, server, `{"events": "not a list"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.NotEmpty(t, resp.Detail)

	_, err := os.Stat(csvPath)
	assert.True(t, os.IsNotExist(err), "rejected batches must not reach the store")
}

func TestHandleEventsEmptyBatch(t *testing.T) {
	server, csvPath := newTestServer(t)

	rec := postEvents(t, server, `{"events": []}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ingestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.ThreatsFound)

	_, err := os.Stat(csvPath)
	assert.True(t, os.IsNotExist(err), "empty batches write nothing")
}

func TestHandleEventsRateLimited(t *testing.T) {
	csvPath := filepath.Join(t.TempDir(), "event_data.csv")
	cfg := config.IngestConfig{Host: "127.0.0.1", Port: 0, CSVPath: csvPath, RateLimit: 0.0001, RateBurst: 1}
	server := NewServer(cfg, detect.New(affirmativeDecider{}), nil)

	first := postEvents(t, server, `{"events": []}`)
	second := postEvents(t, server, `{"events": []}`)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "ok"))
}
