package store

import (
	"context"
	"testing"
	"time"

	"github.com/minjaelee/kis-sentinel/pkg/logger"
)

func TestDedup_MarkThenCheck(t *testing.T) {
	st, _ := testStore(t)
	log := logger.New(logger.Config{Level: "error", Pretty: false})
	dedup := NewDedup(st, log)
	ctx := context.Background()

	key := DailyKey("profit", time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC), "09:00")

	sent, err := dedup.AlreadySent(ctx, key)
	if err != nil {
		t.Fatalf("AlreadySent failed: %v", err)
	}
	if sent {
		t.Error("Fresh key must not read as sent")
	}

	if err := dedup.MarkSent(ctx, key, DailyTTL); err != nil {
		t.Fatalf("MarkSent failed: %v", err)
	}

	sent, err = dedup.AlreadySent(ctx, key)
	if err != nil {
		t.Fatalf("AlreadySent failed: %v", err)
	}
	if !sent {
		t.Error("Marked key must read as sent")
	}
}

func TestDedup_KeysScopeByPeriodAndEntity(t *testing.T) {
	mon := time.Date(2026, 8, 24, 16, 0, 0, 0, time.UTC)
	fri := time.Date(2026, 8, 28, 16, 0, 0, 0, time.UTC)
	nextMon := time.Date(2026, 8, 31, 16, 0, 0, 0, time.UTC)

	if DailyKey("profit", mon, "09:00") == DailyKey("profit", fri, "09:00") {
		t.Error("Different days must yield different daily keys")
	}
	if DailyKey("profit", mon, "09:00") == DailyKey("profit", mon, "12:00") {
		t.Error("Different slots must yield different daily keys")
	}

	// Monday and Friday share an ISO week; the next Monday does not
	if WeeklyKey("trend", mon, "all") != WeeklyKey("trend", fri, "all") {
		t.Error("Same ISO week must yield the same weekly key")
	}
	if WeeklyKey("trend", fri, "all") == WeeklyKey("trend", nextMon, "all") {
		t.Error("Different ISO weeks must yield different weekly keys")
	}
}

func TestDedup_WeeklyReportSentOnce(t *testing.T) {
	st, _ := testStore(t)
	log := logger.New(logger.Config{Level: "error", Pretty: false})
	dedup := NewDedup(st, log)
	ctx := context.Background()

	sends := 0
	for _, day := range []int{28, 28, 28} { // retried runs within the same Friday
		key := WeeklyKey("trend", time.Date(2026, 8, day, 16, 10, 0, 0, time.UTC), "all")
		sent, err := dedup.AlreadySent(ctx, key)
		if err != nil {
			t.Fatalf("AlreadySent failed: %v", err)
		}
		if sent {
			continue
		}
		sends++
		if err := dedup.MarkSent(ctx, key, WeeklyTTL); err != nil {
			t.Fatalf("MarkSent failed: %v", err)
		}
	}

	if sends != 1 {
		t.Errorf("Expected exactly one send per week, got %d", sends)
	}
}
