package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func TestBroadcast_PartialFailure(t *testing.T) {
	var (
		mu    sync.Mutex
		sends []string
	)
	mailer := MailerFunc(func(_ context.Context, msg Message) error {
		mu.Lock()
		sends = append(sends, msg.To)
		mu.Unlock()
		if msg.To == "down@example.com" {
			return errors.New("connection refused")
		}
		return nil
	})

	b := NewBroadcaster(mailer, zap.NewNop())
	msgs := []Message{
		{To: "a@example.com", Subject: "s"},
		{To: "down@example.com", Subject: "s"},
		{To: "c@example.com", Subject: "s"},
	}

	results := b.Broadcast(context.Background(), msgs)

	if len(results) != len(msgs) {
		t.Fatalf("expected %d results, got %d", len(msgs), len(results))
	}
	for i, r := range results {
		if r.To != msgs[i].To {
			t.Errorf("result %d: expected recipient %q got %q", i, msgs[i].To, r.To)
		}
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("expected successful deliveries to carry nil error")
	}
	if results[1].Err == nil {
		t.Errorf("expected failed delivery to carry the error")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sends) != 3 {
		t.Fatalf("expected all 3 sends attempted, got %d", len(sends))
	}
}

func TestBroadcast_Empty(t *testing.T) {
	b := NewBroadcaster(MailerFunc(func(context.Context, Message) error { return nil }), zap.NewNop())
	if results := b.Broadcast(context.Background(), nil); len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}
