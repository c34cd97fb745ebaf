package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"sportsbook-ev-analyzer/internal/models"
)

// messageWriter is the slice of kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher pushes positive-EV records to a Kafka topic for downstream
// notification consumers, deduping per quote key with a cooldown so a
// lingering edge does not re-alert every cycle.
type Publisher struct {
	writer   messageWriter
	cooldown time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewPublisher creates a publisher on the given brokers (comma separated)
// and topic.
func NewPublisher(brokers, topic string, cooldown time.Duration) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &Publisher{
		writer:   w,
		cooldown: cooldown,
		lastSent: make(map[string]time.Time),
	}
}

// PublishPositive sends one positive-EV record, keyed by its quote key.
// Records still inside the cooldown window are dropped silently. The dedupe
// timestamp is recorded only after a successful write, so a failed publish
// does not suppress the next attempt.
func (p *Publisher) PublishPositive(ctx context.Context, rec models.OddsRecord) error {
	key := fmt.Sprintf("%s:%s:%s", rec.GameID, rec.Bookmaker, rec.Team)

	p.mu.Lock()
	if last, ok := p.lastSent[key]; ok && time.Since(last) < p.cooldown {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding alert: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	}); err != nil {
		return err
	}

	p.mu.Lock()
	p.lastSent[key] = time.Now()
	p.mu.Unlock()
	return nil
}

// CleanupExpired drops dedupe entries older than the cooldown so the map
// does not grow across long worker uptimes.
func (p *Publisher) CleanupExpired() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, last := range p.lastSent {
		if time.Since(last) >= p.cooldown {
			delete(p.lastSent, key)
		}
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if closer, ok := p.writer.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
