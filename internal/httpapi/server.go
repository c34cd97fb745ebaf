package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"sportsbook-ev-analyzer/internal/models"
	"sportsbook-ev-analyzer/internal/storage"
)

const (
	defaultHoursAhead = 48
	maxHoursAhead     = 168
	defaultLimit      = 100
	maxLimit          = 500
)

// RecordStore is the read surface of the Postgres store.
type RecordStore interface {
	QueryRecords(ctx context.Context, f storage.QueryFilter) ([]models.OddsRecord, error)
	GetGameRecords(ctx context.Context, gameID string) ([]models.OddsRecord, error)
	Ping(ctx context.Context) error
}

// RecordCache is the read-through cache for per-game record lookups.
type RecordCache interface {
	GetGameRecords(ctx context.Context, gameID string) ([]models.OddsRecord, bool, error)
	SetGameRecords(ctx context.Context, gameID string, records []models.OddsRecord) error
}

// API serves the odds query endpoints backed by the record store, with a
// Redis read-through for single-game lookups.
type API struct {
	store RecordStore
	cache RecordCache
	log   *zap.Logger
}

// New builds the API. cache may be nil, which disables the read-through.
func New(store RecordStore, cache RecordCache, log *zap.Logger) *API {
	return &API{store: store, cache: cache, log: log}
}

// Router wires the HTTP routes.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", a.handleRoot)
	r.Get("/api/health", a.handleHealth)
	r.Get("/api/odds", a.handleOdds)
	r.Get("/api/games", a.handleGames)
	r.Get("/api/games/{gameID}/odds", a.handleGameOdds)

	return r
}

func (a *API) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "odds-query-api",
		"status":  "running",
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		a.log.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// oddsResponse wraps a record list so clients get a stable envelope.
type oddsResponse struct {
	Count   int                 `json:"count"`
	Records []models.OddsRecord `json:"records"`
}

func (a *API) handleOdds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := storage.QueryFilter{
		Bookmaker:  q.Get("bookmaker"),
		Team:       q.Get("team"),
		HoursAhead: clampInt(q.Get("hours_ahead"), defaultHoursAhead, 1, maxHoursAhead),
		Limit:      clampInt(q.Get("limit"), defaultLimit, 1, maxLimit),
	}
	if raw := q.Get("min_ev"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "min_ev must be a number")
			return
		}
		filter.MinEV = &v
	}

	records, err := a.store.QueryRecords(r.Context(), filter)
	if err != nil {
		a.log.Error("query records failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if records == nil {
		records = []models.OddsRecord{}
	}
	writeJSON(w, http.StatusOK, oddsResponse{Count: len(records), Records: records})
}

// gameSummary groups one game's records per bookmaker for the games listing.
type gameSummary struct {
	GameID       string                         `json:"game_id"`
	Sport        string                         `json:"sport"`
	HomeTeam     string                         `json:"home_team"`
	AwayTeam     string                         `json:"away_team"`
	CommenceTime time.Time                      `json:"commence_time"`
	Bookmakers   map[string][]models.OddsRecord `json:"bookmakers"`
}

func (a *API) handleGames(w http.ResponseWriter, r *http.Request) {
	hours := clampInt(r.URL.Query().Get("hours_ahead"), defaultHoursAhead, 1, maxHoursAhead)

	records, err := a.store.QueryRecords(r.Context(), storage.QueryFilter{
		HoursAhead: hours,
		Limit:      maxLimit,
	})
	if err != nil {
		a.log.Error("query records failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	byGame := make(map[string]*gameSummary)
	var order []string
	for _, rec := range records {
		g, ok := byGame[rec.GameID]
		if !ok {
			g = &gameSummary{
				GameID:       rec.GameID,
				Sport:        rec.Sport,
				HomeTeam:     rec.HomeTeam,
				AwayTeam:     rec.AwayTeam,
				CommenceTime: rec.CommenceTime,
				Bookmakers:   make(map[string][]models.OddsRecord),
			}
			byGame[rec.GameID] = g
			order = append(order, rec.GameID)
		}
		g.Bookmakers[rec.Bookmaker] = append(g.Bookmakers[rec.Bookmaker], rec)
	}

	games := make([]*gameSummary, 0, len(order))
	for _, id := range order {
		games = append(games, byGame[id])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(games),
		"games": games,
	})
}

func (a *API) handleGameOdds(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	ctx := r.Context()

	if a.cache != nil {
		records, hit, err := a.cache.GetGameRecords(ctx, gameID)
		if err != nil {
			a.log.Warn("cache read failed", zap.String("game_id", gameID), zap.Error(err))
		} else if hit {
			writeJSON(w, http.StatusOK, oddsResponse{Count: len(records), Records: records})
			return
		}
	}

	records, err := a.store.GetGameRecords(ctx, gameID)
	if err != nil {
		a.log.Error("game records query failed", zap.String("game_id", gameID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}

	if a.cache != nil {
		if err := a.cache.SetGameRecords(ctx, gameID, records); err != nil {
			a.log.Warn("cache write failed", zap.String("game_id", gameID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, oddsResponse{Count: len(records), Records: records})
}

// clampInt parses raw, falling back to def and clamping into [min, max].
func clampInt(raw string, def, min, max int) int {
	v := def
	if raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			v = parsed
		}
	}
	if v < min {
		v = min
	}
	if v > max {
		v = max
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
