package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"sportsbook-ev-analyzer/internal/models"
)

type captureWriter struct {
	messages []kafka.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return nil
}

func testRecord() models.OddsRecord {
	ev := 6.2
	return models.OddsRecord{
		GameID:       "game-1",
		Bookmaker:    "outlierbook",
		Team:         "Lakers",
		PointSpread:  -5.5,
		Odds:         120,
		EVPercentage: &ev,
		IsPositiveEV: true,
	}
}

func TestPublishPositive(t *testing.T) {
	w := &captureWriter{}
	p := &Publisher{writer: w, cooldown: time.Minute, lastSent: make(map[string]time.Time)}

	if err := p.PublishPositive(context.Background(), testRecord()); err != nil {
		t.Fatalf("PublishPositive returned error: %v", err)
	}
	if len(w.messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(w.messages))
	}

	msg := w.messages[0]
	if string(msg.Key) != "game-1:outlierbook:Lakers" {
		t.Errorf("message key = %q", msg.Key)
	}

	var rec models.OddsRecord
	if err := json.Unmarshal(msg.Value, &rec); err != nil {
		t.Fatalf("message value not valid JSON: %v", err)
	}
	if rec.EVPercentage == nil || *rec.EVPercentage != 6.2 {
		t.Errorf("EV not preserved in payload: %v", rec.EVPercentage)
	}
}

func TestPublishPositiveCooldown(t *testing.T) {
	w := &captureWriter{}
	p := &Publisher{writer: w, cooldown: time.Minute, lastSent: make(map[string]time.Time)}

	ctx := context.Background()
	rec := testRecord()

	_ = p.PublishPositive(ctx, rec)
	_ = p.PublishPositive(ctx, rec)
	if len(w.messages) != 1 {
		t.Errorf("repeat within cooldown: got %d messages, want 1", len(w.messages))
	}

	// A different quote key is not deduped.
	other := rec
	other.Bookmaker = "fanduel"
	_ = p.PublishPositive(ctx, other)
	if len(w.messages) != 2 {
		t.Errorf("distinct key: got %d messages, want 2", len(w.messages))
	}

	// Expiring the cooldown allows a re-alert.
	p.mu.Lock()
	p.lastSent["game-1:outlierbook:Lakers"] = time.Now().Add(-2 * time.Minute)
	p.mu.Unlock()
	_ = p.PublishPositive(ctx, rec)
	if len(w.messages) != 3 {
		t.Errorf("after cooldown: got %d messages, want 3", len(w.messages))
	}
}

type failingWriter struct {
	captureWriter
	failures int
}

func (w *failingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.failures > 0 {
		w.failures--
		return errors.New("broker unavailable")
	}
	return w.captureWriter.WriteMessages(ctx, msgs...)
}

func TestPublishPositiveFailedWriteNotDeduped(t *testing.T) {
	w := &failingWriter{failures: 1}
	p := &Publisher{writer: w, cooldown: time.Minute, lastSent: make(map[string]time.Time)}

	ctx := context.Background()
	rec := testRecord()

	if err := p.PublishPositive(ctx, rec); err == nil {
		t.Fatal("expected error from failed write")
	}
	if len(w.messages) != 0 {
		t.Fatalf("failed write delivered %d messages", len(w.messages))
	}

	// The failure must not start the cooldown; the retry goes through.
	if err := p.PublishPositive(ctx, rec); err != nil {
		t.Fatalf("retry after failed write returned error: %v", err)
	}
	if len(w.messages) != 1 {
		t.Errorf("got %d messages after retry, want 1", len(w.messages))
	}
}

func TestCleanupExpired(t *testing.T) {
	p := &Publisher{writer: &captureWriter{}, cooldown: time.Minute, lastSent: make(map[string]time.Time)}
	p.lastSent["old"] = time.Now().Add(-2 * time.Minute)
	p.lastSent["fresh"] = time.Now()

	p.CleanupExpired()

	if _, ok := p.lastSent["old"]; ok {
		t.Error("expired entry should be removed")
	}
	if _, ok := p.lastSent["fresh"]; !ok {
		t.Error("fresh entry should survive")
	}
}
