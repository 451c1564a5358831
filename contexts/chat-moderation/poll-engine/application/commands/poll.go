package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	application "bobbot/contexts/chat-moderation/poll-engine/application"
	"bobbot/contexts/chat-moderation/poll-engine/domain/entities"
	domainerrors "bobbot/contexts/chat-moderation/poll-engine/domain/errors"
	"bobbot/contexts/chat-moderation/poll-engine/ports"
)

// GetOrCreatePollCommand asks for the open poll on (chat, target, kind),
// creating one when none exists.
type GetOrCreatePollCommand struct {
	ChatID           int64
	SourceID         int64
	TargetID         int64
	TriggerMessageID int64
	Kind             entities.PollKind
	Forced           bool
}

// GetOrCreatePollResult distinguishes "point the user at the existing poll" from
// "render a brand-new poll message" for the transport layer.
type GetOrCreatePollResult struct {
	Poll          entities.Poll
	AlreadyExists bool
}

// PollUseCase orchestrates poll lifecycle commands: creation with open-poll
// deduplication, the sliding-window creation quota, message attachment, and
// the defensive discard/force-end paths.
type PollUseCase struct {
	Polls          ports.PollRepository
	Votes          ports.VoteRepository
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	Threshold      int
	CreationLimit  int
	CreationWindow time.Duration
	Logger         *slog.Logger
}

// GetOrCreatePoll returns the open poll for the key or creates one.
//
// The store's uniqueness primitive is the real dedup mechanism; losing a
// concurrent create race surfaces as ErrDuplicateOpenPoll and resolves to the
// winner's poll. Finding more than one open poll is a data anomaly and is
// reconciled by keeping the newest and ending the rest.
func (uc PollUseCase) GetOrCreatePoll(ctx context.Context, cmd GetOrCreatePollCommand) (GetOrCreatePollResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	kind := cmd.Kind
	if kind == "" {
		kind = entities.PollKindBan
	}
	now := uc.now()

	open, err := uc.Polls.ListOpenPolls(ctx, cmd.ChatID, cmd.TargetID, kind)
	if err != nil {
		return GetOrCreatePollResult{}, err
	}
	if len(open) > 1 {
		logger.Warn("multiple open polls found for one key, reconciling",
			"event", "poll_open_anomaly",
			"module", "chat-moderation/poll-engine",
			"layer", "application",
			"chat_id", cmd.ChatID,
			"target_id", cmd.TargetID,
			"kind", string(kind),
			"open_count", len(open),
		)
		for _, stale := range open[1:] {
			if _, err := uc.Polls.EndPoll(ctx, stale.PollID, now); err != nil {
				return GetOrCreatePollResult{}, err
			}
		}
		open = open[:1]
	}

	if len(open) == 1 {
		poll := open[0]
		counts, err := uc.Votes.CountVotesByChoice(ctx, poll.PollID)
		if err != nil {
			return GetOrCreatePollResult{}, err
		}
		if _, done := entities.ResolveWinner(counts, uc.threshold()); done {
			// The poll already met threshold but was never flipped; close it
			// out and fall through to a fresh creation.
			logger.Warn("open poll already met threshold, ending it",
				"event", "poll_stale_open",
				"module", "chat-moderation/poll-engine",
				"layer", "application",
				"poll_id", poll.PollID,
			)
			if _, err := uc.Polls.EndPoll(ctx, poll.PollID, now); err != nil {
				return GetOrCreatePollResult{}, err
			}
		} else {
			return GetOrCreatePollResult{Poll: poll, AlreadyExists: true}, nil
		}
	}

	if !cmd.Forced {
		since := now.Add(-uc.window())
		count, err := uc.Polls.CountRecentPolls(ctx, cmd.ChatID, kind, since)
		if err != nil {
			return GetOrCreatePollResult{}, err
		}
		if count >= uc.limit() {
			return GetOrCreatePollResult{}, &domainerrors.PollLimitReachedError{
				ChatID: cmd.ChatID,
				Kind:   kind,
				At:     now,
				Window: uc.window(),
			}
		}
	}

	pollID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return GetOrCreatePollResult{}, err
	}
	poll := entities.Poll{
		PollID:           pollID,
		Kind:             kind,
		ChatID:           cmd.ChatID,
		SourceID:         cmd.SourceID,
		TargetID:         cmd.TargetID,
		Forced:           cmd.Forced,
		TriggerMessageID: cmd.TriggerMessageID,
		CreatedAt:        now,
	}
	if err := uc.Polls.CreatePoll(ctx, poll); err != nil {
		if errors.Is(err, domainerrors.ErrDuplicateOpenPoll) {
			// A concurrent creator won the constraint race; hand back its poll.
			open, listErr := uc.Polls.ListOpenPolls(ctx, cmd.ChatID, cmd.TargetID, kind)
			if listErr != nil {
				return GetOrCreatePollResult{}, listErr
			}
			if len(open) > 0 {
				return GetOrCreatePollResult{Poll: open[0], AlreadyExists: true}, nil
			}
		}
		return GetOrCreatePollResult{}, err
	}

	logger.Info("poll created",
		"event", "poll_created",
		"module", "chat-moderation/poll-engine",
		"layer", "application",
		"poll_id", poll.PollID,
		"chat_id", poll.ChatID,
		"source_id", poll.SourceID,
		"target_id", poll.TargetID,
		"kind", string(poll.Kind),
		"forced", poll.Forced,
	)
	return GetOrCreatePollResult{Poll: poll}, nil
}

func (uc PollUseCase) GetPoll(ctx context.Context, pollID string) (entities.Poll, error) {
	return uc.Polls.GetPoll(ctx, pollID)
}

// AttachPollMessage records the id of the public poll message once the
// transport delivered it. Until then PollMessageID stays zero, which is the
// race window the retry path in the transport handler covers.
func (uc PollUseCase) AttachPollMessage(ctx context.Context, pollID string, messageID int64) error {
	return uc.Polls.SetPollMessageID(ctx, pollID, messageID)
}

// DiscardPoll removes a poll whose public message could not be sent, so no
// orphan poll without a visible message stays open.
func (uc PollUseCase) DiscardPoll(ctx context.Context, pollID string) error {
	logger := application.ResolveLogger(uc.Logger)
	logger.Warn("discarding poll without a delivered message",
		"event", "poll_discarded",
		"module", "chat-moderation/poll-engine",
		"layer", "application",
		"poll_id", pollID,
	)
	return uc.Polls.DeletePoll(ctx, pollID)
}

// ForceEndPoll ends an open poll whose public message is unreachable.
func (uc PollUseCase) ForceEndPoll(ctx context.Context, pollID string) (bool, error) {
	return uc.Polls.EndPoll(ctx, pollID, uc.now())
}

func (uc PollUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func (uc PollUseCase) threshold() int {
	if uc.Threshold <= 0 {
		return 3
	}
	return uc.Threshold
}

func (uc PollUseCase) limit() int {
	if uc.CreationLimit <= 0 {
		return 2
	}
	return uc.CreationLimit
}

func (uc PollUseCase) window() time.Duration {
	if uc.CreationWindow <= 0 {
		return 10 * time.Minute
	}
	return uc.CreationWindow
}
