package ev

import (
	"time"

	"sportsbook-ev-analyzer/internal/market"
	"sportsbook-ev-analyzer/internal/models"
	"sportsbook-ev-analyzer/internal/oddsmath"
)

// Rating buckets an EV percentage for display and filtering.
type Rating string

const (
	RatingPoor      Rating = "poor"
	RatingFair      Rating = "fair"
	RatingGood      Rating = "good"
	RatingExcellent Rating = "excellent"
)

// DefaultEVThresholdPercent gates the positive-EV flag.
const DefaultEVThresholdPercent = 2.0

// Config holds scoring configuration.
type Config struct {
	// AllowedBookmakers is the bookmaker allow-list. Quotes from books
	// outside it are ignored for consensus and excluded from output.
	// Empty means no filtering (every book allowed).
	AllowedBookmakers []string

	// SharpWeights is the per-bookmaker weight table for the weighted
	// consensus variant. Unlisted books weigh 1.0.
	SharpWeights map[string]float64

	// EVThresholdPercent is the minimum EV% for the positive-EV flag.
	// Used exactly as configured: a zero threshold flags every quote with
	// non-negative EV. DefaultConfig supplies the usual 2%.
	EVThresholdPercent float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		EVThresholdPercent: DefaultEVThresholdPercent,
	}
}

// QuoteKey identifies one quote within a snapshot. It is the natural primary
// key for persisted records: stable across ingestion cycles, so a later cycle
// overwrites rather than duplicates.
type QuoteKey struct {
	GameID    string
	Bookmaker string
	Team      string
}

// Result is the EV annotation for one quote. ConsensusProb and EVPercent are
// nil when the quote's outcome had no computable consensus (no other allowed
// book posted the line); nil is "unknown", never zero.
type Result struct {
	ImpliedProb   float64
	ConsensusProb *float64
	EVPercent     *float64
	Rating        Rating
	PositiveEV    bool
	KellyFraction float64
}

// Engine scores odds snapshots against the cross-book consensus. Pure
// computation over immutable input: no I/O, no shared state, safe to run on
// any number of snapshots concurrently.
type Engine struct {
	cfg     Config
	allowed map[string]bool
}

// New creates an Engine from config.
func New(cfg Config) *Engine {
	var allowed map[string]bool
	if len(cfg.AllowedBookmakers) > 0 {
		allowed = make(map[string]bool, len(cfg.AllowedBookmakers))
		for _, b := range cfg.AllowedBookmakers {
			allowed[b] = true
		}
	}
	return &Engine{cfg: cfg, allowed: allowed}
}

// Classify buckets an EV percentage into a rating.
func Classify(evPercent float64) Rating {
	switch {
	case evPercent >= 10:
		return RatingExcellent
	case evPercent >= 5:
		return RatingGood
	case evPercent >= 2:
		return RatingFair
	default:
		return RatingPoor
	}
}

// IsPositiveEV reports whether an EV percentage clears the threshold.
func IsPositiveEV(evPercent, thresholdPercent float64) bool {
	return evPercent >= thresholdPercent
}

// allowedQuotes flattens a game's quotes, dropping books outside the
// allow-list. With no allow-list configured every quote passes.
func (e *Engine) allowedQuotes(g models.GameOdds) []models.Quote {
	quotes := g.Quotes()
	if e.allowed == nil {
		return quotes
	}
	filtered := quotes[:0]
	for _, q := range quotes {
		if e.allowed[q.Bookmaker] {
			filtered = append(filtered, q)
		}
	}
	return filtered
}

// ScoreSnapshot computes an EV result for every allowed quote in the
// snapshot. Quotes with invalid odds are unscorable and omitted; quotes on
// outcomes with no consensus get a result with nil EV.
func (e *Engine) ScoreSnapshot(games []models.GameOdds) map[QuoteKey]Result {
	results := make(map[QuoteKey]Result)
	for _, game := range games {
		quotes := e.allowedQuotes(game)
		sides := market.AnalyzeSpreadMarketWeighted(quotes, e.cfg.SharpWeights)

		for _, q := range quotes {
			implied, err := oddsmath.ImpliedProbability(q.Odds)
			if err != nil {
				continue
			}

			res := Result{ImpliedProb: implied}
			if side, ok := sides[q.Team]; ok {
				consensus := side.Probability
				res.ConsensusProb = &consensus

				if evPct, err := oddsmath.ExpectedValuePercent(q.Odds, consensus); err == nil {
					v := evPct
					res.EVPercent = &v
					res.Rating = Classify(evPct)
					res.PositiveEV = IsPositiveEV(evPct, e.cfg.EVThresholdPercent)
				}

				if dec, err := oddsmath.DecimalOdds(q.Odds); err == nil {
					if kelly, err := oddsmath.KellyFraction(consensus, dec); err == nil {
						res.KellyFraction = kelly
					}
				}
			}

			results[QuoteKey{GameID: game.GameID, Bookmaker: q.Bookmaker, Team: q.Team}] = res
		}
	}
	return results
}

// BuildRecords produces one output record per allowed, scorable quote,
// carrying the EV annotation alongside the raw quote fields. Records for the
// same QuoteKey from a later cycle supersede earlier ones at the store.
func (e *Engine) BuildRecords(games []models.GameOdds, now time.Time) []models.OddsRecord {
	var records []models.OddsRecord
	for _, game := range games {
		quotes := e.allowedQuotes(game)
		sides := market.AnalyzeSpreadMarketWeighted(quotes, e.cfg.SharpWeights)

		for _, q := range quotes {
			implied, err := oddsmath.ImpliedProbability(q.Odds)
			if err != nil {
				continue
			}

			rec := models.OddsRecord{
				GameID:       game.GameID,
				Sport:        game.Sport,
				HomeTeam:     game.HomeTeam,
				AwayTeam:     game.AwayTeam,
				CommenceTime: game.CommenceTime,
				Bookmaker:    q.Bookmaker,
				Team:         q.Team,
				PointSpread:  q.Spread,
				Odds:         q.Odds,
				ImpliedProb:  implied,
				LastUpdate:   q.LastUpdate,
				IngestedAt:   now,
			}

			if side, ok := sides[q.Team]; ok {
				consensus := side.Probability
				rec.ConsensusProb = &consensus

				if evPct, err := oddsmath.ExpectedValuePercent(q.Odds, consensus); err == nil {
					v := evPct
					rec.EVPercentage = &v
					rec.EVRating = string(Classify(evPct))
					rec.IsPositiveEV = IsPositiveEV(evPct, e.cfg.EVThresholdPercent)
				}

				if dec, err := oddsmath.DecimalOdds(q.Odds); err == nil {
					if kelly, err := oddsmath.KellyFraction(consensus, dec); err == nil {
						rec.KellyFraction = kelly
					}
				}
			}

			records = append(records, rec)
		}
	}
	return records
}

// Summarize scans every allowed quote in the snapshot and reports totals for
// operational logging: quote count, how many had positive computable EV, and
// the best EV seen (nil when nothing was scorable).
func (e *Engine) Summarize(games []models.GameOdds) models.Summary {
	results := e.ScoreSnapshot(games)

	var summary models.Summary
	for _, game := range games {
		summary.TotalQuotes += len(e.allowedQuotes(game))
	}

	for _, res := range results {
		if res.EVPercent == nil {
			continue
		}
		ev := *res.EVPercent
		if ev > 0 {
			summary.PositiveEVCount++
		}
		if summary.BestEV == nil || ev > *summary.BestEV {
			v := ev
			summary.BestEV = &v
		}
	}

	if summary.TotalQuotes > 0 {
		summary.PositiveEVPercentage = float64(summary.PositiveEVCount) / float64(summary.TotalQuotes) * 100.0
	}
	return summary
}
