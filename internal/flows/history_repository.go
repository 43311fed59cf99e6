package flows

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/minjaelee/kis-sentinel/internal/domain"
)

// Instrument is one entry of the flow universe
type Instrument struct {
	Symbol string
	Name   string
}

// HistoryRepository is the per-instrument, per-day net flow ledger.
// One row per (symbol, day); a re-run for the same day overwrites.
type HistoryRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryRepository creates a new flow history repository
func NewHistoryRepository(db *sql.DB, log zerolog.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:  db,
		log: log.With().Str("repo", "flow_history").Logger(),
	}
}

// Append upserts the net flow for one instrument on one trading day
func (r *HistoryRepository) Append(symbol, name, day string, qty int64) error {
	_, err := r.db.Exec(`
		INSERT INTO flow_history (symbol, day, qty) VALUES (?, ?, ?)
		ON CONFLICT(symbol, day) DO UPDATE SET qty = excluded.qty
	`, symbol, day, qty)
	if err != nil {
		return domain.E(domain.KindStore, "flows.append", err)
	}

	if name != "" {
		_, err = r.db.Exec(`
			INSERT INTO instruments (symbol, name) VALUES (?, ?)
			ON CONFLICT(symbol) DO UPDATE SET name = excluded.name
		`, symbol, name)
		if err != nil {
			return domain.E(domain.KindStore, "flows.append", err)
		}
	}

	return nil
}

// LastN returns up to n most recent points for symbol, oldest first.
// Fewer points are returned when the history is shorter.
func (r *HistoryRepository) LastN(symbol string, n int) ([]domain.FlowPoint, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := r.db.Query(`
		SELECT day, qty FROM flow_history
		WHERE symbol = ?
		ORDER BY day DESC
		LIMIT ?
	`, symbol, n)
	if err != nil {
		return nil, domain.E(domain.KindStore, "flows.lastn", err)
	}
	defer rows.Close()

	var points []domain.FlowPoint
	for rows.Next() {
		var p domain.FlowPoint
		if err := rows.Scan(&p.Day, &p.Qty); err != nil {
			return nil, domain.E(domain.KindStore, "flows.lastn", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.E(domain.KindStore, "flows.lastn", err)
	}

	// Query returned newest first; callers want chronological order
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

// Symbols enumerates every instrument ever written, ordered by symbol.
// The fixed order makes equal-score trend ranking deterministic.
func (r *HistoryRepository) Symbols() ([]Instrument, error) {
	rows, err := r.db.Query(`
		SELECT h.symbol, COALESCE(i.name, '')
		FROM (SELECT DISTINCT symbol FROM flow_history) h
		LEFT JOIN instruments i ON i.symbol = h.symbol
		ORDER BY h.symbol
	`)
	if err != nil {
		return nil, domain.E(domain.KindStore, "flows.symbols", err)
	}
	defer rows.Close()

	var out []Instrument
	for rows.Next() {
		var ins Instrument
		if err := rows.Scan(&ins.Symbol, &ins.Name); err != nil {
			return nil, domain.E(domain.KindStore, "flows.symbols", err)
		}
		out = append(out, ins)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.E(domain.KindStore, "flows.symbols", err)
	}
	return out, nil
}

// Prune deletes entries older than the given day (exclusive)
func (r *HistoryRepository) Prune(before string) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM flow_history WHERE day < ?`, before)
	if err != nil {
		return 0, domain.E(domain.KindStore, "flows.prune", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("flows.prune: %w", err)
	}
	if n > 0 {
		r.log.Debug().Int64("rows", n).Str("before", before).Msg("Pruned flow history")
	}
	return n, nil
}
