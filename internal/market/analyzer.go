package market

import (
	"math"
	"sort"

	"sportsbook-ev-analyzer/internal/models"
	"sportsbook-ev-analyzer/internal/oddsmath"
)

// DefaultInefficiencyThreshold is the minimum edge (consensus − implied)
// for a quote to be flagged as an inefficiency.
const DefaultInefficiencyThreshold = 0.02

// Side selects which class of quotes BestOdds compares.
type Side string

const (
	SideFavorite Side = "favorite" // negative American odds
	SideUnderdog Side = "underdog" // positive American odds
)

// MarketSide aggregates all quotes for one (game, outcome) pair. Probability
// is the unweighted consensus over quotes whose odds were convertible; sides
// where nothing was convertible are not represented at all (absent, not zero).
type MarketSide struct {
	Team        string
	Probability float64
	Spread      float64 // nominal spread from the first quote seen for this side
	QuoteCount  int
}

// Inefficiency is a quote priced at least threshold below the side's
// consensus probability: the book is paying better than fair odds.
type Inefficiency struct {
	Quote         models.Quote
	ImpliedProb   float64
	ConsensusProb float64
	Edge          float64 // consensus − implied, always >= threshold
}

// AverageProbability returns the unweighted mean implied probability across
// quotes. Quotes with invalid odds are excluded rather than aborting the
// computation. The second return is false when nothing was computable:
// callers must distinguish "no data" from a genuine 0% probability.
func AverageProbability(quotes []models.Quote) (float64, bool) {
	var sum float64
	var n int
	for _, q := range quotes {
		p, err := oddsmath.ImpliedProbability(q.Odds)
		if err != nil {
			continue
		}
		sum += p
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// SharpWeightedProbability returns the weighted mean implied probability,
// Σ(w·p)/Σw, using the injected per-bookmaker weight table. Bookmakers
// without an entry weigh 1.0. The table is configuration, not something the
// analyzer reasons about.
func SharpWeightedProbability(quotes []models.Quote, weights map[string]float64) (float64, bool) {
	var weighted, totalWeight float64
	var n int
	for _, q := range quotes {
		p, err := oddsmath.ImpliedProbability(q.Odds)
		if err != nil {
			continue
		}
		w := 1.0
		if v, ok := weights[q.Bookmaker]; ok {
			w = v
		}
		weighted += w * p
		totalWeight += w
		n++
	}
	if n == 0 || totalWeight <= 0 {
		return 0, false
	}
	return weighted / totalWeight, true
}

// AnalyzeSpreadMarket groups one game's quotes by outcome name and computes
// each side's consensus probability, nominal spread, and quote count.
// The nominal spread is taken from the first quote seen for the side; books
// occasionally disagree on the line (half-point shopping), and per-quote
// spreads are preserved on the records themselves, so the discrepancy loses
// nothing downstream. Empty input yields an empty map.
func AnalyzeSpreadMarket(quotes []models.Quote) map[string]MarketSide {
	return AnalyzeSpreadMarketWeighted(quotes, nil)
}

// AnalyzeSpreadMarketWeighted is AnalyzeSpreadMarket with a sharp-book weight
// table applied to each side's consensus. A nil table weighs every book 1.0,
// which is identical to the unweighted mean.
func AnalyzeSpreadMarketWeighted(quotes []models.Quote, weights map[string]float64) map[string]MarketSide {
	grouped := make(map[string][]models.Quote)
	var order []string
	for _, q := range quotes {
		if _, seen := grouped[q.Team]; !seen {
			order = append(order, q.Team)
		}
		grouped[q.Team] = append(grouped[q.Team], q)
	}

	sides := make(map[string]MarketSide, len(order))
	for _, team := range order {
		group := grouped[team]
		prob, ok := SharpWeightedProbability(group, weights)
		if !ok {
			// No convertible quote on this side: the side is absent,
			// never a zero-probability entry.
			continue
		}
		sides[team] = MarketSide{
			Team:        team,
			Probability: prob,
			Spread:      group[0].Spread,
			QuoteCount:  len(group),
		}
	}
	return sides
}

// FindInefficiencies scores every quote against its side's consensus and
// returns those whose edge (consensus − implied) meets the threshold,
// sorted descending by edge. Quotes on sides with no computable consensus
// are skipped. The sort is stable so equal edges keep snapshot order.
func FindInefficiencies(quotes []models.Quote, threshold float64) []Inefficiency {
	sides := AnalyzeSpreadMarket(quotes)

	var found []Inefficiency
	for _, q := range quotes {
		side, ok := sides[q.Team]
		if !ok {
			continue
		}
		implied, err := oddsmath.ImpliedProbability(q.Odds)
		if err != nil {
			continue
		}
		edge := side.Probability - implied
		if edge >= threshold {
			found = append(found, Inefficiency{
				Quote:         q,
				ImpliedProb:   implied,
				ConsensusProb: side.Probability,
				Edge:          edge,
			})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Edge > found[j].Edge
	})
	return found
}

// ConsensusSpread returns the most frequent spread value across quotes.
// Ties break toward the value seen first. False for empty input.
func ConsensusSpread(quotes []models.Quote) (float64, bool) {
	if len(quotes) == 0 {
		return 0, false
	}
	counts := make(map[float64]int)
	var order []float64
	for _, q := range quotes {
		if counts[q.Spread] == 0 {
			order = append(order, q.Spread)
		}
		counts[q.Spread]++
	}
	best := order[0]
	for _, v := range order[1:] {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best, true
}

// MarketEfficiency scores how tightly the books agree: 100 − 1000×stddev of
// the implied probabilities, clamped to [0,100]. False with fewer than two
// convertible quotes, where a deviation is meaningless.
func MarketEfficiency(quotes []models.Quote) (float64, bool) {
	var probs []float64
	for _, q := range quotes {
		p, err := oddsmath.ImpliedProbability(q.Odds)
		if err != nil {
			continue
		}
		probs = append(probs, p)
	}
	if len(probs) < 2 {
		return 0, false
	}

	var sum float64
	for _, p := range probs {
		sum += p
	}
	mean := sum / float64(len(probs))

	var variance float64
	for _, p := range probs {
		variance += (p - mean) * (p - mean)
	}
	variance /= float64(len(probs))

	score := 100.0 - 1000.0*math.Sqrt(variance)
	return math.Min(100, math.Max(0, score)), true
}

// BestOdds returns the most bettor-favorable quote for the requested side
// class. Favorites are the negative-odds quotes, underdogs the positive ones;
// within either class the best price is simply the maximum raw American
// value (-105 beats -120, +150 beats +120), so a single comparator serves
// both on purpose. Quotes of the other sign and quotes with invalid odds are
// ignored. False when no quote matches the side.
func BestOdds(quotes []models.Quote, side Side) (models.Quote, bool) {
	var best models.Quote
	found := false
	for _, q := range quotes {
		if _, err := oddsmath.ImpliedProbability(q.Odds); err != nil {
			continue
		}
		if side == SideFavorite && q.Odds >= 0 {
			continue
		}
		if side == SideUnderdog && q.Odds <= 0 {
			continue
		}
		if !found || q.Odds > best.Odds {
			best = q
			found = true
		}
	}
	return best, found
}
