package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sportsbook-ev-analyzer/internal/ev"
	"sportsbook-ev-analyzer/internal/metrics"
	"sportsbook-ev-analyzer/internal/models"
)

// SnapshotFetcher pulls the current spread-market snapshot.
type SnapshotFetcher interface {
	FetchSpreads(ctx context.Context) ([]models.GameOdds, error)
}

// RecordStore is the write surface of the Postgres store.
type RecordStore interface {
	UpsertRecords(ctx context.Context, records []models.OddsRecord) error
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// RecordCache receives the freshest per-game records after each cycle.
type RecordCache interface {
	SetGameRecords(ctx context.Context, gameID string, records []models.OddsRecord) error
}

// AlertPublisher receives positive-EV records.
type AlertPublisher interface {
	PublishPositive(ctx context.Context, rec models.OddsRecord) error
}

// CycleRecorder keeps the local history of cycle summaries.
type CycleRecorder interface {
	Record(summary models.Summary, startedAt time.Time, duration time.Duration) (int64, error)
}

// Pipeline runs the fetch-score-persist loop. Cache, Alerts, CycleLog and
// Metrics are optional; a nil collaborator is skipped.
type Pipeline struct {
	Fetcher  SnapshotFetcher
	Engine   *ev.Engine
	Store    RecordStore
	Cache    RecordCache
	Alerts   AlertPublisher
	CycleLog CycleRecorder
	Metrics  *metrics.Pipeline
	Log      *zap.Logger

	PollInterval    time.Duration
	CleanupInterval time.Duration
	Retention       time.Duration
}

// Run executes one cycle immediately, then repeats on PollInterval with a
// separate cleanup ticker, until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.Log.Info("pipeline starting",
		zap.Duration("poll_interval", p.PollInterval),
		zap.Duration("retention", p.Retention))

	if err := p.RunCycle(ctx); err != nil {
		p.Log.Error("cycle failed", zap.Error(err))
	}

	poll := time.NewTicker(p.PollInterval)
	defer poll.Stop()
	cleanup := time.NewTicker(p.CleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			p.Log.Info("pipeline stopping")
			return ctx.Err()
		case <-poll.C:
			if err := p.RunCycle(ctx); err != nil {
				p.Log.Error("cycle failed", zap.Error(err))
			}
		case <-cleanup.C:
			if err := p.Cleanup(ctx); err != nil {
				p.Log.Error("cleanup failed", zap.Error(err))
			}
		}
	}
}

// RunCycle performs one fetch-score-persist pass.
func (p *Pipeline) RunCycle(ctx context.Context) error {
	started := time.Now()

	games, err := p.Fetcher.FetchSpreads(ctx)
	if err != nil {
		p.countError("fetch")
		return fmt.Errorf("fetching snapshot: %w", err)
	}

	records := p.Engine.BuildRecords(games, started.UTC())
	summary := p.Engine.Summarize(games)

	if err := p.Store.UpsertRecords(ctx, records); err != nil {
		p.countError("store")
		return fmt.Errorf("storing records: %w", err)
	}

	if p.Cache != nil {
		for gameID, recs := range groupByGame(records) {
			if err := p.Cache.SetGameRecords(ctx, gameID, recs); err != nil {
				p.countError("cache")
				p.Log.Warn("cache write failed", zap.String("game_id", gameID), zap.Error(err))
			}
		}
	}

	if p.Alerts != nil {
		for _, rec := range records {
			if !rec.IsPositiveEV {
				continue
			}
			if err := p.Alerts.PublishPositive(ctx, rec); err != nil {
				p.countError("alerts")
				p.Log.Warn("alert publish failed",
					zap.String("game_id", rec.GameID),
					zap.String("bookmaker", rec.Bookmaker),
					zap.Error(err))
			}
		}
	}

	duration := time.Since(started)

	if p.CycleLog != nil {
		if _, err := p.CycleLog.Record(summary, started, duration); err != nil {
			p.countError("cyclelog")
			p.Log.Warn("cycle log write failed", zap.Error(err))
		}
	}

	if p.Metrics != nil {
		p.Metrics.Cycles.Inc()
		p.Metrics.QuotesScored.Add(float64(summary.TotalQuotes))
		p.Metrics.PositiveEV.Add(float64(summary.PositiveEVCount))
		p.Metrics.CycleDuration.Observe(duration.Seconds())
		if summary.BestEV != nil {
			p.Metrics.BestEV.Set(*summary.BestEV)
		}
	}

	fields := []zap.Field{
		zap.Int("games", len(games)),
		zap.Int("records", len(records)),
		zap.Int("positive_ev", summary.PositiveEVCount),
		zap.Duration("duration", duration),
	}
	if summary.BestEV != nil {
		fields = append(fields, zap.Float64("best_ev_percent", *summary.BestEV))
	}
	p.Log.Info("cycle complete", fields...)
	return nil
}

// Cleanup removes records for games that commenced beyond the retention
// window and expires the alert publisher's dedupe entries, which would
// otherwise grow by one per quote key forever as game ids rotate.
func (p *Pipeline) Cleanup(ctx context.Context) error {
	if c, ok := p.Alerts.(interface{ CleanupExpired() }); ok {
		c.CleanupExpired()
	}

	cutoff := time.Now().Add(-p.Retention)
	deleted, err := p.Store.DeleteStale(ctx, cutoff)
	if err != nil {
		p.countError("cleanup")
		return fmt.Errorf("deleting stale records: %w", err)
	}
	if p.Metrics != nil {
		p.Metrics.RecordsDeleted.Add(float64(deleted))
	}
	if deleted > 0 {
		p.Log.Info("stale records removed",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff))
	}
	return nil
}

func (p *Pipeline) countError(stage string) {
	if p.Metrics != nil {
		p.Metrics.Errors.WithLabelValues(stage).Inc()
	}
}

func groupByGame(records []models.OddsRecord) map[string][]models.OddsRecord {
	byGame := make(map[string][]models.OddsRecord)
	for _, r := range records {
		byGame[r.GameID] = append(byGame[r.GameID], r)
	}
	return byGame
}
