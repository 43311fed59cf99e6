package holdings

import (
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/minjaelee/kis-sentinel/internal/domain"
)

// SnapshotRepository persists the previous-cycle holdings baseline.
// Exactly one baseline exists; Replace swaps it atomically.
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: log.With().Str("repo", "snapshot").Logger(),
	}
}

// Load returns the stored baseline snapshot. A missing baseline (first
// run) is an empty snapshot, not an error.
func (r *SnapshotRepository) Load() (domain.Snapshot, error) {
	rows, err := r.db.Query(`
		SELECT code, name, quantity, avg_price, current_price
		FROM snapshot_lines
		ORDER BY code
	`)
	if err != nil {
		return domain.Snapshot{}, domain.E(domain.KindStore, "snapshot.load", err)
	}
	defer rows.Close()

	var snap domain.Snapshot
	for rows.Next() {
		var line domain.HoldingLine
		if err := rows.Scan(&line.Code, &line.Name, &line.Quantity, &line.AvgPrice, &line.CurrentPrice); err != nil {
			return domain.Snapshot{}, domain.E(domain.KindStore, "snapshot.load", err)
		}
		snap.Lines = append(snap.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return domain.Snapshot{}, domain.E(domain.KindStore, "snapshot.load", err)
	}

	return snap, nil
}

// Replace swaps the baseline for the given snapshot in one transaction
func (r *SnapshotRepository) Replace(snap domain.Snapshot) error {
	tx, err := r.db.Begin()
	if err != nil {
		return domain.E(domain.KindStore, "snapshot.replace", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM snapshot_lines`); err != nil {
		return domain.E(domain.KindStore, "snapshot.replace", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO snapshot_lines (code, name, quantity, avg_price, current_price)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return domain.E(domain.KindStore, "snapshot.replace", err)
	}
	defer stmt.Close()

	for _, line := range snap.Lines {
		if line.Quantity == 0 {
			continue
		}
		if _, err := stmt.Exec(line.Code, line.Name, line.Quantity, line.AvgPrice, line.CurrentPrice); err != nil {
			return domain.E(domain.KindStore, "snapshot.replace", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.E(domain.KindStore, "snapshot.replace", err)
	}
	return nil
}
