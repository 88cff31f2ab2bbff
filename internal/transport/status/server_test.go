package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/corpuslab/tokenmill/internal/metrics"
	"github.com/corpuslab/tokenmill/internal/pipeline"
)

func testServer() *http.Server {
	reg := prometheus.NewRegistry()
	metrics.New(reg)
	progress := pipeline.NewProgress("test-run", 100, 4)
	return NewServer(9090, reg, progress, zap.NewNop())
}

func TestHealthz(t *testing.T) {
	srv := testServer()
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProgress(t *testing.T) {
	srv := testServer()
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap pipeline.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.RunID != "test-run" {
		t.Errorf("run id = %q", snap.RunID)
	}
	if snap.VolumesLeft != 100 || snap.BatchesTotal != 4 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer()
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
