package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RoomOpened()
	m.Relayed("move")
	m.StoreError("save")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("nil metrics handler should 404, got %d", rec.Code)
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.RoomOpened()
	m.Relayed("move")
	m.Relayed("move")
	m.Dropped("malformed")
	m.GameFinished()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	for _, want := range []string{
		`dama_frames_relayed_total{type="move"} 2`,
		`dama_frames_dropped_total{reason="malformed"} 1`,
		`dama_rooms_active 1`,
		`dama_games_finished_total 1`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestGathererListsFamilies(t *testing.T) {
	m := New()
	m.Admission("admitted")
	m.StoreError("load")

	mfs, err := m.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	seen := map[string]bool{}
	for _, mf := range mfs {
		seen[mf.GetName()] = true
	}
	for _, name := range []string{"dama_admissions_total", "dama_store_errors_total", "dama_connections_active"} {
		if !seen[name] {
			t.Fatalf("family %s not gathered", name)
		}
	}

	var nilMetrics *Metrics
	if mfs, err := nilMetrics.Gatherer().Gather(); err != nil || len(mfs) != 0 {
		t.Fatalf("nil gatherer = %d families, %v", len(mfs), err)
	}
}
