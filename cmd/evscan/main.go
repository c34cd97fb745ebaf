// evscan does a one-shot fetch-and-score pass and prints the result, for
// eyeballing live markets without the worker loop or any collaborators.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"sportsbook-ev-analyzer/internal/config"
	"sportsbook-ev-analyzer/internal/ev"
	"sportsbook-ev-analyzer/internal/market"
	"sportsbook-ev-analyzer/internal/oddsapi"
)

func main() {
	cfg := config.Load()
	if cfg.OddsAPIKey == "" {
		log.Fatal("ODDS_API_KEY is required")
	}

	client := oddsapi.NewClient(cfg.BaseURL, cfg.OddsAPIKey, cfg.Sport, cfg.Regions,
		30, 15*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	games, err := client.FetchSpreads(ctx)
	if err != nil {
		log.Fatalf("fetching odds: %v", err)
	}
	fmt.Printf("=== %d games (%s, %s) ===\n\n", len(games), cfg.Sport, cfg.Regions)

	engine := ev.New(ev.Config{
		AllowedBookmakers:  cfg.AllowedBookmakers,
		SharpWeights:       cfg.SharpWeights,
		EVThresholdPercent: cfg.EVThresholdPercent,
	})

	for _, g := range games {
		quotes := g.Quotes()
		fmt.Printf("%s @ %s  (%s, %d quotes)\n",
			g.AwayTeam, g.HomeTeam, g.CommenceTime.Local().Format("Jan 2 15:04"), len(quotes))

		if spread, ok := market.ConsensusSpread(quotes); ok {
			fmt.Printf("  consensus spread: %+.1f\n", spread)
		}
		if eff, ok := market.MarketEfficiency(quotes); ok {
			fmt.Printf("  market efficiency: %.1f/100\n", eff)
		}

		for _, ineff := range market.FindInefficiencies(quotes, cfg.InefficiencyThreshold) {
			fmt.Printf("  INEFFICIENCY %s %s %+d: implied %.4f vs consensus %.4f (edge %.4f)\n",
				ineff.Quote.Bookmaker, ineff.Quote.Team, ineff.Quote.Odds,
				ineff.ImpliedProb, ineff.ConsensusProb, ineff.Edge)
		}
		fmt.Println()
	}

	summary := engine.Summarize(games)
	fmt.Printf("=== summary ===\n")
	fmt.Printf("quotes scored:   %d\n", summary.TotalQuotes)
	fmt.Printf("positive EV:     %d (%.1f%%)\n", summary.PositiveEVCount, summary.PositiveEVPercentage)
	if summary.BestEV != nil {
		fmt.Printf("best EV:         %+.2f%%\n", *summary.BestEV)
	} else {
		fmt.Printf("best EV:         n/a (no scorable quotes)\n")
	}
}
