package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/refund-explainer/internal/domain"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists explanation runs to a local SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the API list runs while batch workers write.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS explanations (
			id              TEXT PRIMARY KEY,
			created_at      INTEGER NOT NULL,
			source          TEXT NOT NULL,
			prior_year      INTEGER NOT NULL,
			current_year    INTEGER NOT NULL,
			prior_balance   TEXT NOT NULL,
			current_balance TEXT NOT NULL,
			total_change    TEXT NOT NULL,
			direction       TEXT NOT NULL,
			driver_count    INTEGER NOT NULL,
			drivers         TEXT NOT NULL,
			narrative       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_explanations_created ON explanations(created_at)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) Record(ctx context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var narrative sql.NullString
	if e.Narrative != nil {
		narrative = sql.NullString{String: *e.Narrative, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `INSERT INTO explanations
		(id, created_at, source, prior_year, current_year,
		 prior_balance, current_balance, total_change, direction,
		 driver_count, drivers, narrative)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.CreatedAt.UnixNano(), e.Source, e.PriorYear, e.CurrentYear,
		e.PriorBalance.String(), e.CurrentBalance.String(), e.TotalChange.String(), string(e.Direction),
		e.DriverCount, string(e.Drivers), narrative,
	)
	if err != nil {
		return fmt.Errorf("insert explanation %s: %w", e.ID, err)
	}
	return nil
}

func (r *SQLiteRecorder) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT
		id, created_at, source, prior_year, current_year,
		prior_balance, current_balance, total_change, direction,
		driver_count, drivers, narrative
		FROM explanations
		ORDER BY created_at DESC, id
		LIMIT ?`, NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query explanations: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e                    Entry
			createdAt            int64
			prior, current, diff string
			direction, drivers   string
			narrative            sql.NullString
		)
		if err := rows.Scan(&e.ID, &createdAt, &e.Source, &e.PriorYear, &e.CurrentYear,
			&prior, &current, &diff, &direction, &e.DriverCount, &drivers, &narrative); err != nil {
			return nil, fmt.Errorf("scan explanation: %w", err)
		}

		e.CreatedAt = time.Unix(0, createdAt).UTC()
		if e.PriorBalance, err = decimal.NewFromString(prior); err != nil {
			return nil, fmt.Errorf("parse prior_balance of %s: %w", e.ID, err)
		}
		if e.CurrentBalance, err = decimal.NewFromString(current); err != nil {
			return nil, fmt.Errorf("parse current_balance of %s: %w", e.ID, err)
		}
		if e.TotalChange, err = decimal.NewFromString(diff); err != nil {
			return nil, fmt.Errorf("parse total_change of %s: %w", e.ID, err)
		}
		e.Direction = domain.Direction(direction)
		e.Drivers = json.RawMessage(drivers)
		if narrative.Valid {
			s := narrative.String
			e.Narrative = &s
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate explanations: %w", err)
	}
	return entries, nil
}

func (r *SQLiteRecorder) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `DELETE FROM explanations WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune explanations: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
