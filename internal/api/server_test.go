package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"xsn-monitor/internal/crawler"
	"xsn-monitor/internal/monitor"
)

func TestHandleStatus(t *testing.T) {
	status := crawler.NewStatus()
	status.InitFromMonitors([]monitor.Monitor{
		{ID: "m1", OwnerID: 1},
		{ID: "m2", OwnerID: 1},
		{ID: "m3", OwnerID: 2},
	})
	srv := NewServer(0, status)

	rec := httptest.NewRecorder()
	srv.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got crawler.Stats
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.MonitorCount != 3 || got.OwnerCount != 2 {
		t.Fatalf("stats = %+v, want 3 monitors / 2 owners", got)
	}
	if !got.LastChecked.Equal(time.Time{}) {
		t.Fatalf("last checked should be zero before the first cycle, got %v", got.LastChecked)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := NewServer(0, crawler.NewStatus())
	rec := httptest.NewRecorder()
	srv.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
