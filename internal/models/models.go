package models

import "time"

// Outcome is one side of a spread market as priced by a single bookmaker.
type Outcome struct {
	Team   string  `json:"team"`
	Spread float64 `json:"point_spread"`
	Odds   int     `json:"odds"` // American odds, |odds| >= 100
}

// BookmakerOdds is one bookmaker's block of outcome quotes for a game.
type BookmakerOdds struct {
	Bookmaker  string    `json:"bookmaker"`
	LastUpdate time.Time `json:"last_update"`
	Outcomes   []Outcome `json:"outcomes"`
}

// GameOdds is a fully materialized snapshot of one game's spread market
// across bookmakers. Immutable once built by an ingestion cycle.
type GameOdds struct {
	GameID       string          `json:"game_id"`
	Sport        string          `json:"sport"`
	HomeTeam     string          `json:"home_team"`
	AwayTeam     string          `json:"away_team"`
	CommenceTime time.Time       `json:"commence_time"`
	Bookmakers   []BookmakerOdds `json:"bookmakers"`
}

// Quote is a single bookmaker price for one side of one game's spread market.
// The (GameID-implied) tuple (Bookmaker, Team) identifies it within a game.
type Quote struct {
	Bookmaker  string
	Team       string
	Spread     float64
	Odds       int
	LastUpdate time.Time
}

// Quotes flattens the per-bookmaker blocks into the quote list the market
// analyzer operates on. Iteration order follows the snapshot order, which
// keeps "first quote" tie-breaks deterministic for a given snapshot.
func (g GameOdds) Quotes() []Quote {
	var quotes []Quote
	for _, bm := range g.Bookmakers {
		for _, o := range bm.Outcomes {
			quotes = append(quotes, Quote{
				Bookmaker:  bm.Bookmaker,
				Team:       o.Team,
				Spread:     o.Spread,
				Odds:       o.Odds,
				LastUpdate: bm.LastUpdate,
			})
		}
	}
	return quotes
}

// OddsRecord is the persisted, EV-annotated form of one allowed quote.
// EVPercentage and ConsensusProb are nil when no consensus could be computed
// for the quote's outcome; nil must never be collapsed to zero.
type OddsRecord struct {
	GameID        string    `json:"game_id"`
	Sport         string    `json:"sport"`
	HomeTeam      string    `json:"home_team"`
	AwayTeam      string    `json:"away_team"`
	CommenceTime  time.Time `json:"commence_time"`
	Bookmaker     string    `json:"bookmaker"`
	Team          string    `json:"team"`
	PointSpread   float64   `json:"point_spread"`
	Odds          int       `json:"odds"`
	ImpliedProb   float64   `json:"implied_prob"`
	ConsensusProb *float64  `json:"consensus_prob"`
	EVPercentage  *float64  `json:"ev_percentage"`
	EVRating      string    `json:"ev_rating,omitempty"`
	IsPositiveEV  bool      `json:"is_positive_ev"`
	KellyFraction float64   `json:"kelly_fraction"`
	LastUpdate    time.Time `json:"last_update"`
	IngestedAt    time.Time `json:"ingested_at"`
}

// Summary is the per-cycle observability record: how many quotes were scored,
// how many cleared the positive-EV threshold, and the best EV seen. BestEV is
// nil when no quote had a computable EV.
type Summary struct {
	TotalQuotes          int      `json:"total_quotes"`
	PositiveEVCount      int      `json:"positive_ev_count"`
	PositiveEVPercentage float64  `json:"positive_ev_percentage"`
	BestEV               *float64 `json:"best_ev"`
}
