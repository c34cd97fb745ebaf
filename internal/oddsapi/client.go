package oddsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"sportsbook-ev-analyzer/internal/models"
)

// Client fetches spread odds snapshots from The Odds API (v4). Requests are
// rate limited with a token bucket so a tight poll interval cannot burn
// through the monthly request quota.
type Client struct {
	httpClient *http.Client
	limiter    *rateLimiter
	baseURL    string
	apiKey     string
	sport      string
	regions    string
	maxRetries int
}

// NewClient creates a rate-limited Odds API client.
func NewClient(baseURL, apiKey, sport, regions string, requestsPerMinute int, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    newRateLimiter(requestsPerMinute),
		baseURL:    baseURL,
		apiKey:     apiKey,
		sport:      sport,
		regions:    regions,
		maxRetries: 3,
	}
}

// apiGame mirrors the v4 odds response. Prices arrive as numbers even with
// oddsFormat=american, so they decode as float64 and round to int.
type apiGame struct {
	ID           string    `json:"id"`
	SportKey     string    `json:"sport_key"`
	CommenceTime time.Time `json:"commence_time"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
	Bookmakers   []struct {
		Key        string    `json:"key"`
		LastUpdate time.Time `json:"last_update"`
		Markets    []struct {
			Key      string `json:"key"`
			Outcomes []struct {
				Name  string  `json:"name"`
				Price float64 `json:"price"`
				Point float64 `json:"point"`
			} `json:"outcomes"`
		} `json:"markets"`
	} `json:"bookmakers"`
}

// FetchSpreads retrieves the current spread-market snapshot for the
// configured sport. The snapshot is fully materialized before returning so
// scoring never overlaps network I/O.
func (c *Client) FetchSpreads(ctx context.Context) ([]models.GameOdds, error) {
	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	q.Set("regions", c.regions)
	q.Set("markets", "spreads")
	q.Set("oddsFormat", "american")

	endpoint := fmt.Sprintf("%s/v4/sports/%s/odds?%s", c.baseURL, c.sport, q.Encode())

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetching spread odds: %w", err)
	}
	return parseGames(body)
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, body)
			continue
		default:
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
		}
	}
	return nil, fmt.Errorf("after %d retries: %w", c.maxRetries, lastErr)
}

// parseGames converts the raw API payload into snapshot models, keeping only
// the spreads market from each bookmaker block.
func parseGames(data []byte) ([]models.GameOdds, error) {
	var raw []apiGame
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding odds payload: %w", err)
	}

	games := make([]models.GameOdds, 0, len(raw))
	for _, g := range raw {
		game := models.GameOdds{
			GameID:       g.ID,
			Sport:        g.SportKey,
			HomeTeam:     g.HomeTeam,
			AwayTeam:     g.AwayTeam,
			CommenceTime: g.CommenceTime,
		}

		for _, bm := range g.Bookmakers {
			for _, m := range bm.Markets {
				if m.Key != "spreads" {
					continue
				}
				block := models.BookmakerOdds{
					Bookmaker:  bm.Key,
					LastUpdate: bm.LastUpdate,
				}
				for _, o := range m.Outcomes {
					block.Outcomes = append(block.Outcomes, models.Outcome{
						Team:   o.Name,
						Spread: o.Point,
						Odds:   int(math.Round(o.Price)),
					})
				}
				if len(block.Outcomes) > 0 {
					game.Bookmakers = append(game.Bookmakers, block)
				}
			}
		}
		games = append(games, game)
	}
	return games, nil
}

// rateLimiter is a token bucket sized to about ten seconds of burst.
type rateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
}

func newRateLimiter(requestsPerMinute int) *rateLimiter {
	if requestsPerMinute < 6 {
		requestsPerMinute = 6
	}
	return &rateLimiter{
		tokens:     requestsPerMinute / 6,
		maxTokens:  requestsPerMinute / 6,
		refillRate: time.Minute / time.Duration(requestsPerMinute),
		lastRefill: time.Now(),
	}
}

func (rl *rateLimiter) wait(ctx context.Context) error {
	for {
		rl.mu.Lock()

		now := time.Now()
		if refill := int(now.Sub(rl.lastRefill) / rl.refillRate); refill > 0 {
			rl.tokens = min(rl.tokens+refill, rl.maxTokens)
			rl.lastRefill = now
		}

		if rl.tokens > 0 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}

		waitTime := rl.refillRate
		rl.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}
