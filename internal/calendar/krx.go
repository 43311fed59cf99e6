package calendar

import (
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TradingWindow represents the trading period within a day
type TradingWindow struct {
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int
}

// KRX provides the trading-day and market-hours gate for the Korea
// Exchange regular session (09:00–15:30 KST)
type KRX struct {
	loc      *time.Location
	window   TradingWindow
	holidays map[string]bool
	years    map[int]bool // years the holiday table covers
	log      zerolog.Logger

	mu     sync.Mutex
	warned map[int]bool
}

// NewKRX creates a KRX calendar
func NewKRX(log zerolog.Logger) *KRX {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		loc = time.FixedZone("KST", 9*60*60)
	}

	k := &KRX{
		loc:      loc,
		window:   TradingWindow{OpenHour: 9, OpenMinute: 0, CloseHour: 15, CloseMinute: 30},
		holidays: make(map[string]bool),
		years:    make(map[int]bool),
		warned:   make(map[int]bool),
		log:      log.With().Str("component", "krx_calendar").Logger(),
	}

	// 2026 closures, substitute holidays included
	for _, day := range []string{
		"2026-01-01", // New Year's Day
		"2026-02-16", // Seollal holidays
		"2026-02-17",
		"2026-02-18",
		"2026-03-02", // Independence Movement Day (observed)
		"2026-05-01", // Labor Day
		"2026-05-05", // Children's Day
		"2026-05-25", // Buddha's Birthday (observed)
		"2026-08-17", // Liberation Day (observed)
		"2026-09-24", // Chuseok holidays
		"2026-09-25",
		"2026-10-05", // National Foundation Day (observed)
		"2026-10-09", // Hangul Day
		"2026-12-25", // Christmas
		"2026-12-31", // Year-end closing
	} {
		k.holidays[day] = true
		if year, err := strconv.Atoi(day[:4]); err == nil {
			k.years[year] = true
		}
	}

	return k
}

// Location returns the exchange timezone
func (k *KRX) Location() *time.Location {
	return k.loc
}

// IsTradingDay reports whether the exchange is open at all on t's date.
// Outside the holiday table's covered years only the weekend gate applies;
// the first hit per year logs a warning so the table gets extended.
func (k *KRX) IsTradingDay(t time.Time) bool {
	t = t.In(k.loc)
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	k.checkCoverage(t.Year())
	return !k.holidays[t.Format("2006-01-02")]
}

func (k *KRX) checkCoverage(year int) {
	if k.years[year] {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.warned[year] {
		return
	}
	k.warned[year] = true
	k.log.Warn().Int("year", year).Msg("No holiday table for this year, gating on weekends only")
}

// InTradingHours reports whether t falls inside the regular session on a
// trading day
func (k *KRX) InTradingHours(t time.Time) bool {
	if !k.IsTradingDay(t) {
		return false
	}
	t = t.In(k.loc)
	minutes := t.Hour()*60 + t.Minute()
	open := k.window.OpenHour*60 + k.window.OpenMinute
	close := k.window.CloseHour*60 + k.window.CloseMinute
	return minutes >= open && minutes < close
}

// AfterClose reports whether t is past the session close on a trading
// day. Investor flow data is only published after close.
func (k *KRX) AfterClose(t time.Time) bool {
	if !k.IsTradingDay(t) {
		return false
	}
	t = t.In(k.loc)
	minutes := t.Hour()*60 + t.Minute()
	return minutes >= k.window.CloseHour*60+k.window.CloseMinute
}
