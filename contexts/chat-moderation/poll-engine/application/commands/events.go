package commands

import (
	"context"
	"encoding/json"
	"time"

	"bobbot/contexts/chat-moderation/poll-engine/domain/entities"
	"bobbot/contexts/chat-moderation/poll-engine/ports"
)

func (uc VoteUseCase) appendFinalizedEvent(
	ctx context.Context,
	poll entities.Poll,
	winner entities.Choice,
	counts map[entities.Choice]int,
	occurredAt time.Time,
) error {
	// Outbox is optional for pure read/test wiring, so nil is treated as no-op.
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newPollEnvelope(eventID, "poll.finalized", poll.PollID, occurredAt, map[string]any{
		"poll_id":     poll.PollID,
		"kind":        string(poll.Kind),
		"chat_id":     poll.ChatID,
		"source_id":   poll.SourceID,
		"target_id":   poll.TargetID,
		"winner":      string(winner),
		"yes_count":   counts[entities.ChoiceYes],
		"no_count":    counts[entities.ChoiceNo],
		"forced":      poll.Forced,
		"occurred_at": occurredAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}

func newPollEnvelope(
	eventID string,
	eventType string,
	pollID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Events are partitioned by poll so per-poll ordering survives the broker.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:       eventID,
		EventType:     eventType,
		SourceService: "poll-engine",
		OccurredAt:    occurredAt.UTC(),
		PartitionKey:  pollID,
		SchemaVersion: 1,
		Data:          payload,
	}, nil
}
