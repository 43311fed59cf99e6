package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/minjaelee/kis-sentinel/internal/database"
	"github.com/minjaelee/kis-sentinel/internal/flows"
	"github.com/minjaelee/kis-sentinel/internal/scheduler"
	"github.com/minjaelee/kis-sentinel/internal/store"
	"github.com/minjaelee/kis-sentinel/internal/trend"
	"github.com/minjaelee/kis-sentinel/pkg/logger"
)

func testServer(t *testing.T) (*Server, *flows.HistoryRepository) {
	t.Helper()

	log := logger.New(logger.Config{Level: "error", Pretty: false})

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	mr := miniredis.RunT(t)
	st := store.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), log)

	history := flows.NewHistoryRepository(db.Conn(), log)
	srv := New(Config{
		Port:   0,
		Log:    log,
		Poll:   scheduler.NewPollJob(scheduler.PollJobConfig{Log: log}),
		Scorer: trend.NewScorer(history, log),
		Store:  st,
		Window: 20,
		TopN:   15,
	})
	return srv, history
}

func TestHandleHealth(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Bad JSON: %v", err)
	}
	if body["service"] != "kis-sentinel" || body["status"] != "healthy" {
		t.Errorf("Unexpected health body: %v", body)
	}
}

func TestHandleSystemStatus(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/system/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Bad JSON: %v", err)
	}
	if body["store"] != "ok" {
		t.Errorf("Expected reachable store, got %v", body["store"])
	}
}

func TestHandleHoldingsReport_BeforeFirstCycle(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report/holdings", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 before the first cycle, got %d", rec.Code)
	}
}

func TestHandleTrendReport(t *testing.T) {
	srv, history := testServer(t)

	for i, day := range []string{"2026-08-26", "2026-08-27", "2026-08-28"} {
		if err := history.Append("005930", "Samsung Electronics", day, int64(10*(i+1))); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report/trends", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		WindowDays int `json:"window_days"`
		Candidates []struct {
			Code  string  `json:"code"`
			Score float64 `json:"score"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Bad JSON: %v", err)
	}
	if body.WindowDays != 20 {
		t.Errorf("Expected window 20, got %d", body.WindowDays)
	}
	if len(body.Candidates) != 1 || body.Candidates[0].Code != "005930" {
		t.Errorf("Unexpected candidates: %+v", body.Candidates)
	}
}
