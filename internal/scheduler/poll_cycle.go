package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/minjaelee/kis-sentinel/internal/calendar"
	"github.com/minjaelee/kis-sentinel/internal/domain"
	"github.com/minjaelee/kis-sentinel/internal/holdings"
	"github.com/minjaelee/kis-sentinel/internal/store"
)

// BalanceProvider returns the full current holdings snapshot
type BalanceProvider interface {
	FetchHoldings(ctx context.Context, token string) (domain.Snapshot, error)
}

// PollJobConfig holds configuration for the intraday poll cycle
type PollJobConfig struct {
	Log       zerolog.Logger
	Calendar  *calendar.KRX
	Tokens    TokenSource
	Balance   BalanceProvider
	Differ    *holdings.Differ
	Snapshots *holdings.SnapshotRepository
	Notifier  Notifier
	Timeout   time.Duration
}

// PollJob runs the intraday cycle: fetch holdings, diff against the
// stored baseline, alert on quantity changes, then persist the new
// baseline. The baseline is always replaced once a diff was computed,
// even when dispatch fails: losing one alert beats resurfacing it on
// every later cycle.
type PollJob struct {
	log       zerolog.Logger
	calendar  *calendar.KRX
	tokens    TokenSource
	balance   BalanceProvider
	differ    *holdings.Differ
	snapshots *holdings.SnapshotRepository
	notifier  Notifier
	timeout   time.Duration
	now       func() time.Time

	mu         sync.Mutex
	lastResult *holdings.DiffResult
	lastRun    time.Time
	lastErr    error
}

// NewPollJob creates a new poll cycle job
func NewPollJob(cfg PollJobConfig) *PollJob {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &PollJob{
		log:       cfg.Log.With().Str("job", "poll_cycle").Logger(),
		calendar:  cfg.Calendar,
		tokens:    cfg.Tokens,
		balance:   cfg.Balance,
		differ:    cfg.Differ,
		snapshots: cfg.Snapshots,
		notifier:  cfg.Notifier,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Name returns the job name
func (j *PollJob) Name() string {
	return "poll_cycle"
}

// Run executes one poll cycle
func (j *PollJob) Run() error {
	now := j.now()
	if !j.calendar.InTradingHours(now) {
		// Closed market is a silent no-op, not an error
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	result, err := j.cycle(ctx)

	j.mu.Lock()
	j.lastRun = now
	j.lastErr = err
	if result != nil {
		j.lastResult = result
	}
	j.mu.Unlock()

	if err != nil {
		j.log.Error().Err(err).Str("kind", string(domain.KindOf(err))).Msg("Poll cycle failed")
		if sendErr := j.notifier.Send(ctx, "❌ monitor cycle failed ("+string(domain.KindOf(err))+"): "+err.Error()); sendErr != nil {
			j.log.Error().Err(sendErr).Msg("Failure alert dropped")
		}
		return err
	}
	return nil
}

func (j *PollJob) cycle(ctx context.Context) (*holdings.DiffResult, error) {
	token, err := j.tokens.GetToken(ctx)
	if err != nil {
		return nil, err
	}

	current, err := j.balance.FetchHoldings(ctx, token)
	if err != nil {
		return nil, err
	}

	previous, err := j.snapshots.Load()
	if err != nil {
		// Stateless degrade: diff against an empty baseline
		j.log.Warn().Err(err).Msg("Baseline unavailable, diffing against empty snapshot")
		previous = domain.Snapshot{}
	}

	result := j.differ.Diff(previous, current)

	if len(result.Events) > 0 {
		j.log.Info().Int("changes", len(result.Events)).Msg("Position changes detected")
		if err := j.notifier.Send(ctx, holdings.RenderChangeAlert(result.Events)); err != nil {
			j.log.Error().Err(err).Msg("Change alert dropped")
		}
	}

	if err := j.snapshots.Replace(result.Current); err != nil {
		j.log.Error().Err(err).Msg("Failed to persist baseline snapshot")
	}

	return &result, nil
}

// LastResult returns the most recent diff result and cycle status for
// the status server
func (j *PollJob) LastResult() (*holdings.DiffResult, time.Time, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastResult, j.lastRun, j.lastErr
}

// storeDegraded reports whether err is a store failure that should be
// tolerated rather than aborting a cycle
func storeDegraded(err error) bool {
	if err == nil {
		return false
	}
	return domain.KindOf(err) == domain.KindStore || errors.Is(err, store.ErrNotFound)
}
