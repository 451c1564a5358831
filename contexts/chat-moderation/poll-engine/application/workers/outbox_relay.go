package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "bobbot/contexts/chat-moderation/poll-engine/application"
	"bobbot/contexts/chat-moderation/poll-engine/ports"
)

// OutboxRelay publishes persisted poll events to the event bus.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	Topic     string
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce publishes a bounded batch of pending outbox rows and marks each row
// published only after the broker accepted it. It stops on the first failure
// so the next cycle reprocesses the remaining rows.
func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("outbox list failed",
			"event", "poll_outbox_list_failed",
			"module", "chat-moderation/poll-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, row := range pending {
		var event ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			logger.Error("outbox row decode failed",
				"event", "poll_outbox_decode_failed",
				"module", "chat-moderation/poll-engine",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
		topic := r.Topic
		if topic == "" {
			topic = event.EventType
		}
		if err := r.Publisher.Publish(ctx, topic, event); err != nil {
			logger.Error("outbox publish failed",
				"event", "poll_outbox_publish_failed",
				"module", "chat-moderation/poll-engine",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_id", event.EventID,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			logger.Error("outbox mark published failed",
				"event", "poll_outbox_mark_failed",
				"module", "chat-moderation/poll-engine",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
	}

	logger.Info("outbox relay cycle completed",
		"event", "poll_outbox_relay_completed",
		"module", "chat-moderation/poll-engine",
		"layer", "worker",
		"published_count", len(pending),
	)
	return nil
}
