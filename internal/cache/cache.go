package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"sportsbook-ev-analyzer/internal/models"
)

// Connect opens and pings a Redis client.
func Connect(addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}

// Cache holds the freshest scored records per game so the query service can
// answer current-snapshot reads without the database.
type Cache struct {
	Client *redis.Client
	TTL    time.Duration
}

// New creates a record cache with the given TTL.
func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{Client: client, TTL: ttl}
}

func key(gameID string) string { return "odds:game:" + gameID }

// SetGameRecords stores one game's current records.
func (c *Cache) SetGameRecords(ctx context.Context, gameID string, records []models.OddsRecord) error {
	b, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, key(gameID), b, c.TTL).Err()
}

// GetGameRecords loads one game's records. The bool reports a cache hit.
func (c *Cache) GetGameRecords(ctx context.Context, gameID string) ([]models.OddsRecord, bool, error) {
	b, err := c.Client.Get(ctx, key(gameID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var records []models.OddsRecord
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, false, err
	}
	return records, true, nil
}
