package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// TTLs leave slack past the report period so a key never expires while
// its period is still current.
const (
	DailyTTL  = 48 * time.Hour
	WeeklyTTL = 4 * 7 * 24 * time.Hour
)

// Dedup guards at-most-once delivery of periodic reports. A key is marked
// only after a send reaches the dispatch boundary; marking is not rolled
// back if the downstream webhook silently drops the message.
type Dedup struct {
	store *Store
	log   zerolog.Logger
}

// NewDedup creates a new dedup guard
func NewDedup(store *Store, log zerolog.Logger) *Dedup {
	return &Dedup{
		store: store,
		log:   log.With().Str("component", "dedup").Logger(),
	}
}

// AlreadySent reports whether a report was already sent for this key
func (d *Dedup) AlreadySent(ctx context.Context, key string) (bool, error) {
	return d.store.Exists(ctx, key)
}

// MarkSent records that a report was dispatched for this key
func (d *Dedup) MarkSent(ctx context.Context, key string, ttl time.Duration) error {
	return d.store.Set(ctx, key, "1", ttl)
}

// DailyKey builds a dedup key scoped to one calendar day
func DailyKey(scope string, t time.Time, entity string) string {
	return fmt.Sprintf("alert:%s:%s:%s", scope, t.Format("2006-01-02"), entity)
}

// WeeklyKey builds a dedup key scoped to one ISO week
func WeeklyKey(scope string, t time.Time, entity string) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("alert:%s:%d-W%02d:%s", scope, year, week, entity)
}
