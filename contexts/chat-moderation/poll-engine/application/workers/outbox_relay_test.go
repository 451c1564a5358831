package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"bobbot/contexts/chat-moderation/poll-engine/adapters/memory"
	"bobbot/contexts/chat-moderation/poll-engine/ports"
)

type capturingPublisher struct {
	failAfter int
	published []struct {
		topic string
		event ports.EventEnvelope
	}
}

func (p *capturingPublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	if p.failAfter >= 0 && len(p.published) >= p.failAfter {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, struct {
		topic string
		event ports.EventEnvelope
	}{topic, event})
	return nil
}

func appendEvent(t *testing.T, store *memory.Store, seq int, id string, key string) {
	t.Helper()
	err := store.AppendOutbox(context.Background(), ports.EventEnvelope{
		EventID:       id,
		EventType:     "poll.finalized",
		SourceService: "bobbot",
		OccurredAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Second),
		PartitionKey:  key,
		SchemaVersion: 1,
		Data:          json.RawMessage(`{"poll_id":"` + key + `"}`),
	})
	if err != nil {
		t.Fatalf("append outbox: %v", err)
	}
}

func TestRunOncePublishesPendingAndMarksPublished(t *testing.T) {
	store := memory.NewStore()
	publisher := &capturingPublisher{failAfter: -1}
	appendEvent(t, store, 1, "evt-1", "poll-1")
	appendEvent(t, store, 2, "evt-2", "poll-2")

	relay := OutboxRelay{
		Outbox:    store,
		Publisher: publisher,
		Clock:     store,
		Topic:     "chat-moderation.poll-events",
	}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	if len(publisher.published) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(publisher.published))
	}
	for _, row := range publisher.published {
		if row.topic != "chat-moderation.poll-events" {
			t.Fatalf("unexpected topic %q", row.topic)
		}
	}
	if publisher.published[0].event.EventID != "evt-1" || publisher.published[1].event.EventID != "evt-2" {
		t.Fatalf("events published out of append order: %+v", publisher.published)
	}

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("all rows should be marked published, %d still pending", len(pending))
	}
}

func TestRunOnceTopicFallsBackToEventType(t *testing.T) {
	store := memory.NewStore()
	publisher := &capturingPublisher{failAfter: -1}
	appendEvent(t, store, 1, "evt-1", "poll-1")

	relay := OutboxRelay{Outbox: store, Publisher: publisher, Clock: store}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(publisher.published) != 1 || publisher.published[0].topic != "poll.finalized" {
		t.Fatalf("expected event type as topic, got %+v", publisher.published)
	}
}

func TestRunOnceStopsOnPublishFailure(t *testing.T) {
	store := memory.NewStore()
	publisher := &capturingPublisher{failAfter: 1}
	appendEvent(t, store, 1, "evt-1", "poll-1")
	appendEvent(t, store, 2, "evt-2", "poll-2")

	relay := OutboxRelay{Outbox: store, Publisher: publisher, Clock: store}
	if err := relay.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected publish failure to surface")
	}

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].OutboxID != "evt-2" {
		t.Fatalf("the failed row should stay pending, got %+v", pending)
	}
}

func TestRunOnceRespectsBatchSize(t *testing.T) {
	store := memory.NewStore()
	publisher := &capturingPublisher{failAfter: -1}
	for i := 0; i < 3; i++ {
		appendEvent(t, store, i, "evt-"+string(rune('a'+i)), "poll-1")
	}

	relay := OutboxRelay{Outbox: store, Publisher: publisher, Clock: store, BatchSize: 2}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(publisher.published) != 2 {
		t.Fatalf("expected batch of 2, got %d", len(publisher.published))
	}

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("second run once: %v", err)
	}
	if len(publisher.published) != 3 {
		t.Fatalf("expected remaining row on the next cycle, got %d", len(publisher.published))
	}
}

func TestRunOnceNoPendingIsANoOp(t *testing.T) {
	store := memory.NewStore()
	publisher := &capturingPublisher{failAfter: -1}

	relay := OutboxRelay{Outbox: store, Publisher: publisher, Clock: store}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(publisher.published) != 0 {
		t.Fatalf("nothing should publish")
	}
}
