package cyclelog

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"sportsbook-ev-analyzer/internal/models"
)

// Cycle is one ingestion cycle's operational summary.
type Cycle struct {
	ID                   int64
	StartedAt            time.Time
	DurationMS           int64
	TotalQuotes          int
	PositiveEVCount      int
	PositiveEVPercentage float64
	BestEV               *float64
	CreatedAt            time.Time
}

// Log keeps a local sqlite history of ingestion cycle summaries so worker
// behavior can be inspected without the shared database.
type Log struct {
	db *sql.DB
}

// New opens (or creates) the cycle log database.
func New(path string) (*Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening cycle log: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Log{db: db}, nil
}

func createTables(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS cycles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL,
		total_quotes INTEGER NOT NULL,
		positive_ev_count INTEGER NOT NULL,
		positive_ev_percentage REAL NOT NULL,
		best_ev REAL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_cycles_started ON cycles(started_at);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record appends one cycle summary and returns its row id. A nil BestEV is
// stored as NULL, keeping "no scorable quote" distinct from a 0% best.
func (l *Log) Record(summary models.Summary, startedAt time.Time, duration time.Duration) (int64, error) {
	var bestEV sql.NullFloat64
	if summary.BestEV != nil {
		bestEV = sql.NullFloat64{Float64: *summary.BestEV, Valid: true}
	}

	res, err := l.db.Exec(`
		INSERT INTO cycles (started_at, duration_ms, total_quotes, positive_ev_count, positive_ev_percentage, best_ev)
		VALUES (?, ?, ?, ?, ?, ?)
	`, startedAt, duration.Milliseconds(), summary.TotalQuotes,
		summary.PositiveEVCount, summary.PositiveEVPercentage, bestEV)
	if err != nil {
		return 0, fmt.Errorf("inserting cycle: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns the newest n cycle summaries.
func (l *Log) Recent(n int) ([]Cycle, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := l.db.Query(`
		SELECT id, started_at, duration_ms, total_quotes, positive_ev_count, positive_ev_percentage, best_ev, created_at
		FROM cycles
		ORDER BY started_at DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("querying cycles: %w", err)
	}
	defer rows.Close()

	var cycles []Cycle
	for rows.Next() {
		var c Cycle
		var bestEV sql.NullFloat64
		err := rows.Scan(&c.ID, &c.StartedAt, &c.DurationMS, &c.TotalQuotes,
			&c.PositiveEVCount, &c.PositiveEVPercentage, &bestEV, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning cycle: %w", err)
		}
		if bestEV.Valid {
			v := bestEV.Float64
			c.BestEV = &v
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}
