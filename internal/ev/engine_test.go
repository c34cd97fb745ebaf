package ev

import (
	"math"
	"reflect"
	"testing"
	"time"

	"sportsbook-ev-analyzer/internal/models"
	"sportsbook-ev-analyzer/internal/oddsmath"
)

var testTime = time.Date(2025, 11, 8, 19, 0, 0, 0, time.UTC)

func testGame(bookmakers ...models.BookmakerOdds) models.GameOdds {
	return models.GameOdds{
		GameID:       "game-1",
		Sport:        "basketball_nba",
		HomeTeam:     "Lakers",
		AwayTeam:     "Celtics",
		CommenceTime: testTime.Add(4 * time.Hour),
		Bookmakers:   bookmakers,
	}
}

func book(name string, quotes ...models.Outcome) models.BookmakerOdds {
	return models.BookmakerOdds{Bookmaker: name, LastUpdate: testTime, Outcomes: quotes}
}

func spreadPair(homeOdds, awayOdds int) []models.Outcome {
	return []models.Outcome{
		{Team: "Lakers", Spread: -5.5, Odds: homeOdds},
		{Team: "Celtics", Spread: 5.5, Odds: awayOdds},
	}
}

func TestScoreSnapshot(t *testing.T) {
	game := testGame(
		book("draftkings", spreadPair(-110, -110)...),
		book("fanduel", spreadPair(-110, -110)...),
		book("outlierbook", spreadPair(110, -135)...),
	)

	engine := New(DefaultConfig())
	results := engine.ScoreSnapshot([]models.GameOdds{game})

	if len(results) != 6 {
		t.Fatalf("got %d results, want 6", len(results))
	}

	outlier, ok := results[QuoteKey{GameID: "game-1", Bookmaker: "outlierbook", Team: "Lakers"}]
	if !ok {
		t.Fatal("missing outlier result")
	}
	if outlier.EVPercent == nil {
		t.Fatal("outlier EV should be present")
	}
	if *outlier.EVPercent <= 0 {
		t.Errorf("outlier quote priced above consensus should be +EV, got %v", *outlier.EVPercent)
	}
	if outlier.KellyFraction <= 0 {
		t.Errorf("positive-EV quote should carry a positive Kelly fraction, got %v", outlier.KellyFraction)
	}

	square, ok := results[QuoteKey{GameID: "game-1", Bookmaker: "draftkings", Team: "Lakers"}]
	if !ok {
		t.Fatal("missing draftkings result")
	}
	if square.EVPercent == nil {
		t.Fatal("draftkings EV should be present")
	}
	if *square.EVPercent >= 0 {
		t.Errorf("quote priced below consensus should be -EV, got %v", *square.EVPercent)
	}
	if square.KellyFraction != 0 {
		t.Errorf("no-edge quote should have zero Kelly, got %v", square.KellyFraction)
	}
}

func TestScoreSnapshotAllowlist(t *testing.T) {
	game := testGame(
		book("draftkings", spreadPair(-110, -110)...),
		book("offshorebook", spreadPair(300, -400)...),
	)

	engine := New(Config{AllowedBookmakers: []string{"draftkings"}})
	results := engine.ScoreSnapshot([]models.GameOdds{game})

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (offshore book excluded)", len(results))
	}
	if _, ok := results[QuoteKey{GameID: "game-1", Bookmaker: "offshorebook", Team: "Lakers"}]; ok {
		t.Error("non-allow-listed bookmaker must not be scored")
	}

	// With the offshore book excluded, draftkings is the whole consensus:
	// its own EV is exactly zero, present, not absent.
	dk := results[QuoteKey{GameID: "game-1", Bookmaker: "draftkings", Team: "Lakers"}]
	if dk.EVPercent == nil {
		t.Fatal("single-book consensus should still produce an EV")
	}
	if math.Abs(*dk.EVPercent) > 1e-9 {
		t.Errorf("quote scored against itself should have EV 0, got %v", *dk.EVPercent)
	}
}

func TestScoreSnapshotSkipsInvalidOdds(t *testing.T) {
	game := testGame(
		book("draftkings", spreadPair(-110, -110)...),
		book("badbook", models.Outcome{Team: "Lakers", Spread: -5.5, Odds: 50}),
	)

	engine := New(DefaultConfig())
	results := engine.ScoreSnapshot([]models.GameOdds{game})

	if _, ok := results[QuoteKey{GameID: "game-1", Bookmaker: "badbook", Team: "Lakers"}]; ok {
		t.Error("quote with invalid odds must be reported as unscored, not given a number")
	}

	// The bad quote is also excluded from the consensus the valid quotes see.
	dk := results[QuoteKey{GameID: "game-1", Bookmaker: "draftkings", Team: "Lakers"}]
	if dk.EVPercent == nil || math.Abs(*dk.EVPercent) > 1e-9 {
		t.Errorf("consensus should ignore the invalid quote, EV = %v", dk.EVPercent)
	}
}

func TestScoreSnapshotZeroThreshold(t *testing.T) {
	// A configured 0% threshold is a real setting, not "unset": a quote at
	// exactly fair value (EV 0) must be flagged positive under it.
	game := testGame(book("draftkings", spreadPair(-110, -110)...))

	engine := New(Config{EVThresholdPercent: 0})
	results := engine.ScoreSnapshot([]models.GameOdds{game})

	dk := results[QuoteKey{GameID: "game-1", Bookmaker: "draftkings", Team: "Lakers"}]
	if dk.EVPercent == nil {
		t.Fatal("EV should be present")
	}
	if !dk.PositiveEV {
		t.Errorf("EV %v with threshold 0 should be flagged positive", *dk.EVPercent)
	}

	engine = New(DefaultConfig())
	results = engine.ScoreSnapshot([]models.GameOdds{game})
	if results[QuoteKey{GameID: "game-1", Bookmaker: "draftkings", Team: "Lakers"}].PositiveEV {
		t.Error("EV 0 must not clear the default 2% threshold")
	}
}

func TestScoreSnapshotSharpWeights(t *testing.T) {
	game := testGame(
		book("pinnacle", spreadPair(-130, 110)...),
		book("draftkings", spreadPair(-110, -110)...),
		book("fanduel", spreadPair(-110, -110)...),
	)

	weights := map[string]float64{"pinnacle": 3.0}
	engine := New(Config{SharpWeights: weights, EVThresholdPercent: 2.0})
	results := engine.ScoreSnapshot([]models.GameOdds{game})

	dk := results[QuoteKey{GameID: "game-1", Bookmaker: "draftkings", Team: "Lakers"}]
	if dk.ConsensusProb == nil {
		t.Fatal("consensus should be present")
	}

	pinn, _ := oddsmath.ImpliedProbability(-130)
	rec, _ := oddsmath.ImpliedProbability(-110)
	want := (3.0*pinn + rec + rec) / 5.0
	if math.Abs(*dk.ConsensusProb-want) > 1e-12 {
		t.Errorf("ConsensusProb = %v, want sharp-weighted %v", *dk.ConsensusProb, want)
	}

	unweighted := (pinn + rec + rec) / 3.0
	if math.Abs(*dk.ConsensusProb-unweighted) < 1e-9 {
		t.Error("weight table had no effect on the consensus")
	}
}

func TestScoreSnapshotDeterministic(t *testing.T) {
	games := []models.GameOdds{testGame(
		book("draftkings", spreadPair(-110, -110)...),
		book("fanduel", spreadPair(-105, -115)...),
		book("betmgm", spreadPair(-112, -108)...),
	)}

	engine := New(DefaultConfig())
	first := engine.ScoreSnapshot(games)
	second := engine.ScoreSnapshot(games)

	if !reflect.DeepEqual(first, second) {
		t.Error("scoring the same snapshot twice must yield identical results")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		evPercent float64
		want      Rating
	}{
		{15.0, RatingExcellent},
		{10.0, RatingExcellent},
		{9.99, RatingGood},
		{5.0, RatingGood},
		{4.99, RatingFair},
		{2.0, RatingFair},
		{1.99, RatingPoor},
		{0, RatingPoor},
		{-8.3, RatingPoor},
	}
	for _, tt := range tests {
		if got := Classify(tt.evPercent); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.evPercent, got, tt.want)
		}
	}
}

func TestIsPositiveEV(t *testing.T) {
	if !IsPositiveEV(2.0, DefaultEVThresholdPercent) {
		t.Error("EV at the threshold should be flagged positive")
	}
	if IsPositiveEV(1.99, DefaultEVThresholdPercent) {
		t.Error("EV below the threshold must not be flagged")
	}
	if !IsPositiveEV(0.5, 0.5) {
		t.Error("custom threshold should be respected")
	}
}

func TestBuildRecords(t *testing.T) {
	game := testGame(
		book("draftkings", spreadPair(-110, -110)...),
		book("outlierbook", spreadPair(120, -145)...),
	)

	engine := New(DefaultConfig())
	records := engine.BuildRecords([]models.GameOdds{game}, testTime)

	if len(records) != 4 {
		t.Fatalf("got %d records, want 4", len(records))
	}

	var outlier *models.OddsRecord
	for i := range records {
		if records[i].Bookmaker == "outlierbook" && records[i].Team == "Lakers" {
			outlier = &records[i]
		}
	}
	if outlier == nil {
		t.Fatal("missing outlier record")
	}

	if outlier.GameID != "game-1" || outlier.Sport != "basketball_nba" {
		t.Errorf("game fields not propagated: %+v", outlier)
	}
	if outlier.HomeTeam != "Lakers" || outlier.AwayTeam != "Celtics" {
		t.Errorf("team fields not propagated: %+v", outlier)
	}
	if outlier.PointSpread != -5.5 || outlier.Odds != 120 {
		t.Errorf("quote fields not propagated: %+v", outlier)
	}
	if !outlier.IngestedAt.Equal(testTime) {
		t.Errorf("IngestedAt = %v, want %v", outlier.IngestedAt, testTime)
	}

	implied, _ := oddsmath.ImpliedProbability(120)
	if math.Abs(outlier.ImpliedProb-implied) > 1e-12 {
		t.Errorf("ImpliedProb = %v, want %v", outlier.ImpliedProb, implied)
	}
	if outlier.ConsensusProb == nil || outlier.EVPercentage == nil {
		t.Fatal("consensus and EV should be present")
	}
	if *outlier.EVPercentage <= 0 {
		t.Errorf("outlier EV = %v, want positive", *outlier.EVPercentage)
	}
	if outlier.IsPositiveEV != IsPositiveEV(*outlier.EVPercentage, DefaultEVThresholdPercent) {
		t.Error("positive-EV flag disagrees with the threshold gate")
	}
	if outlier.EVRating != string(Classify(*outlier.EVPercentage)) {
		t.Errorf("EVRating = %q, want %q", outlier.EVRating, Classify(*outlier.EVPercentage))
	}
}

func TestSummarize(t *testing.T) {
	game := testGame(
		book("draftkings", spreadPair(-110, -110)...),
		book("fanduel", spreadPair(-110, -110)...),
		book("outlierbook", spreadPair(115, -110)...),
	)

	engine := New(DefaultConfig())
	summary := engine.Summarize([]models.GameOdds{game})

	if summary.TotalQuotes != 6 {
		t.Errorf("TotalQuotes = %d, want 6", summary.TotalQuotes)
	}
	// The +115 Lakers quote sits above consensus; everything else is at or
	// below it.
	if summary.PositiveEVCount != 1 {
		t.Errorf("PositiveEVCount = %d, want 1", summary.PositiveEVCount)
	}
	wantPct := 1.0 / 6.0 * 100.0
	if math.Abs(summary.PositiveEVPercentage-wantPct) > 1e-9 {
		t.Errorf("PositiveEVPercentage = %v, want %v", summary.PositiveEVPercentage, wantPct)
	}
	if summary.BestEV == nil || *summary.BestEV <= 0 {
		t.Errorf("BestEV = %v, want positive value", summary.BestEV)
	}
}

func TestSummarizeEmptySnapshot(t *testing.T) {
	engine := New(DefaultConfig())
	summary := engine.Summarize(nil)

	if summary.TotalQuotes != 0 || summary.PositiveEVCount != 0 {
		t.Errorf("empty snapshot summary = %+v, want zeros", summary)
	}
	if summary.PositiveEVPercentage != 0 {
		t.Errorf("PositiveEVPercentage = %v, want 0 (no division by zero)", summary.PositiveEVPercentage)
	}
	if summary.BestEV != nil {
		t.Errorf("BestEV = %v, want nil (absent, not zero)", *summary.BestEV)
	}
}
