package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/minjaelee/kis-sentinel/internal/calendar"
	"github.com/minjaelee/kis-sentinel/internal/domain"
	"github.com/minjaelee/kis-sentinel/internal/holdings"
	"github.com/minjaelee/kis-sentinel/internal/store"
)

// FillsProvider returns the day's executed orders
type FillsProvider interface {
	FetchTodayFills(ctx context.Context, token string, day time.Time) ([]domain.Fill, error)
}

// FillsJobConfig holds configuration for the order-fill watcher
type FillsJobConfig struct {
	Log      zerolog.Logger
	Calendar *calendar.KRX
	Tokens   TokenSource
	Fills    FillsProvider
	Dedup    *store.Dedup
	Notifier Notifier
	Timeout  time.Duration
}

// FillsJob polls today's executions and alerts each order id once.
// Seen ids live in the dedup store under the order's date, so a restart
// mid-day does not re-announce old fills.
type FillsJob struct {
	log      zerolog.Logger
	calendar *calendar.KRX
	tokens   TokenSource
	fills    FillsProvider
	dedup    *store.Dedup
	notifier Notifier
	timeout  time.Duration
	now      func() time.Time
}

// NewFillsJob creates a new fills job
func NewFillsJob(cfg FillsJobConfig) *FillsJob {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &FillsJob{
		log:      cfg.Log.With().Str("job", "fills").Logger(),
		calendar: cfg.Calendar,
		tokens:   cfg.Tokens,
		fills:    cfg.Fills,
		dedup:    cfg.Dedup,
		notifier: cfg.Notifier,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Name returns the job name
func (j *FillsJob) Name() string {
	return "fills"
}

// Run polls today's fills and announces new ones
func (j *FillsJob) Run() error {
	now := j.now()
	if !j.calendar.IsTradingDay(now) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	token, err := j.tokens.GetToken(ctx)
	if err != nil {
		return err
	}

	day := now.In(j.calendar.Location())
	fills, err := j.fills.FetchTodayFills(ctx, token, day)
	if err != nil {
		return err
	}

	for _, fill := range fills {
		key := store.DailyKey("fill", day, fill.OrderID)
		seen, err := j.dedup.AlreadySent(ctx, key)
		if err != nil {
			j.log.Warn().Err(err).Str("odno", fill.OrderID).Msg("Seen-order check failed, assuming new")
		}
		if seen {
			continue
		}

		if err := j.notifier.Send(ctx, holdings.RenderFillAlert(fill)); err != nil {
			j.log.Error().Err(err).Str("odno", fill.OrderID).Msg("Fill alert dropped")
		}
		if err := j.dedup.MarkSent(ctx, key, store.DailyTTL); err != nil {
			j.log.Warn().Err(err).Str("odno", fill.OrderID).Msg("Failed to mark fill seen")
		}
	}

	return nil
}
