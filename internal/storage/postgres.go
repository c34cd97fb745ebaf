package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"sportsbook-ev-analyzer/internal/models"
)

// Store persists EV-annotated odds records in Postgres. The quote key
// (game_id, bookmaker, team) is the primary key, so repeated ingestion
// cycles overwrite rather than duplicate.
type Store struct {
	db *sql.DB
}

// Connect opens the database, verifies connectivity, and ensures the schema.
func Connect(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS odds_records (
		game_id        TEXT NOT NULL,
		sport          TEXT NOT NULL,
		home_team      TEXT NOT NULL,
		away_team      TEXT NOT NULL,
		commence_time  TIMESTAMPTZ NOT NULL,
		bookmaker      TEXT NOT NULL,
		team           TEXT NOT NULL,
		point_spread   DOUBLE PRECISION NOT NULL,
		odds           INTEGER NOT NULL,
		implied_prob   DOUBLE PRECISION NOT NULL,
		consensus_prob DOUBLE PRECISION,
		ev_percentage  DOUBLE PRECISION,
		ev_rating      TEXT NOT NULL DEFAULT '',
		is_positive_ev BOOLEAN NOT NULL DEFAULT FALSE,
		kelly_fraction DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_update    TIMESTAMPTZ NOT NULL,
		ingested_at    TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (game_id, bookmaker, team)
	);

	CREATE INDEX IF NOT EXISTS idx_odds_records_commence ON odds_records (commence_time);
	CREATE INDEX IF NOT EXISTS idx_odds_records_positive ON odds_records (is_positive_ev, ev_percentage);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports database health.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UpsertRecords writes one cycle's records in a single transaction.
func (s *Store) UpsertRecords(ctx context.Context, records []models.OddsRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO odds_records
		  (game_id, sport, home_team, away_team, commence_time, bookmaker, team,
		   point_spread, odds, implied_prob, consensus_prob, ev_percentage,
		   ev_rating, is_positive_ev, kelly_fraction, last_update, ingested_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (game_id, bookmaker, team) DO UPDATE SET
		  sport          = EXCLUDED.sport,
		  home_team      = EXCLUDED.home_team,
		  away_team      = EXCLUDED.away_team,
		  commence_time  = EXCLUDED.commence_time,
		  point_spread   = EXCLUDED.point_spread,
		  odds           = EXCLUDED.odds,
		  implied_prob   = EXCLUDED.implied_prob,
		  consensus_prob = EXCLUDED.consensus_prob,
		  ev_percentage  = EXCLUDED.ev_percentage,
		  ev_rating      = EXCLUDED.ev_rating,
		  is_positive_ev = EXCLUDED.is_positive_ev,
		  kelly_fraction = EXCLUDED.kelly_fraction,
		  last_update    = EXCLUDED.last_update,
		  ingested_at    = EXCLUDED.ingested_at
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			r.GameID, r.Sport, r.HomeTeam, r.AwayTeam, r.CommenceTime,
			r.Bookmaker, r.Team, r.PointSpread, r.Odds, r.ImpliedProb,
			nullFloat(r.ConsensusProb), nullFloat(r.EVPercentage),
			r.EVRating, r.IsPositiveEV, r.KellyFraction,
			r.LastUpdate, r.IngestedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert %s/%s/%s: %w", r.GameID, r.Bookmaker, r.Team, err)
		}
	}
	return tx.Commit()
}

// QueryFilter narrows record reads. Zero values mean "no filter";
// MinEV is a pointer so a zero threshold stays distinguishable from unset.
type QueryFilter struct {
	Bookmaker  string
	Team       string
	MinEV      *float64
	HoursAhead int
	Limit      int
}

// QueryRecords returns records for games starting within the filter window,
// newest commence time first.
func (s *Store) QueryRecords(ctx context.Context, f QueryFilter) ([]models.OddsRecord, error) {
	if f.HoursAhead <= 0 {
		f.HoursAhead = 48
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}

	q := `
		SELECT game_id, sport, home_team, away_team, commence_time, bookmaker, team,
		       point_spread, odds, implied_prob, consensus_prob, ev_percentage,
		       ev_rating, is_positive_ev, kelly_fraction, last_update, ingested_at
		FROM odds_records
		WHERE commence_time > NOW()
		  AND commence_time <= NOW() + ($1 * INTERVAL '1 hour')
	`
	args := []any{f.HoursAhead}

	if f.Bookmaker != "" {
		args = append(args, f.Bookmaker)
		q += fmt.Sprintf(" AND bookmaker = $%d", len(args))
	}
	if f.Team != "" {
		args = append(args, f.Team)
		q += fmt.Sprintf(" AND team = $%d", len(args))
	}
	if f.MinEV != nil {
		args = append(args, *f.MinEV)
		q += fmt.Sprintf(" AND ev_percentage IS NOT NULL AND ev_percentage >= $%d", len(args))
	}

	args = append(args, f.Limit)
	q += fmt.Sprintf(" ORDER BY commence_time DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// GetGameRecords returns all records for one game.
func (s *Store) GetGameRecords(ctx context.Context, gameID string) ([]models.OddsRecord, error) {
	const q = `
		SELECT game_id, sport, home_team, away_team, commence_time, bookmaker, team,
		       point_spread, odds, implied_prob, consensus_prob, ev_percentage,
		       ev_rating, is_positive_ev, kelly_fraction, last_update, ingested_at
		FROM odds_records
		WHERE game_id = $1
		ORDER BY bookmaker, team
	`
	rows, err := s.db.QueryContext(ctx, q, gameID)
	if err != nil {
		return nil, fmt.Errorf("querying game records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// DeleteStale removes records for games that commenced before the cutoff.
// Returns the number of rows removed.
func (s *Store) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM odds_records WHERE commence_time < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting stale records: %w", err)
	}
	return res.RowsAffected()
}

func scanRecords(rows *sql.Rows) ([]models.OddsRecord, error) {
	var out []models.OddsRecord
	for rows.Next() {
		var r models.OddsRecord
		var consensus, evPct sql.NullFloat64
		err := rows.Scan(
			&r.GameID, &r.Sport, &r.HomeTeam, &r.AwayTeam, &r.CommenceTime,
			&r.Bookmaker, &r.Team, &r.PointSpread, &r.Odds, &r.ImpliedProb,
			&consensus, &evPct, &r.EVRating, &r.IsPositiveEV, &r.KellyFraction,
			&r.LastUpdate, &r.IngestedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		if consensus.Valid {
			v := consensus.Float64
			r.ConsensusProb = &v
		}
		if evPct.Valid {
			v := evPct.Float64
			r.EVPercentage = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
