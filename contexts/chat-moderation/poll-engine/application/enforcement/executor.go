package enforcement

import (
	"context"
	"errors"
	"log/slog"

	application "bobbot/contexts/chat-moderation/poll-engine/application"
	"bobbot/contexts/chat-moderation/poll-engine/domain/entities"
	domainerrors "bobbot/contexts/chat-moderation/poll-engine/domain/errors"
	"bobbot/contexts/chat-moderation/poll-engine/ports"
)

// Executor carries out a finalized kick decision: delete the message the poll
// was called on and revoke the target's access. The two actions are attempted
// independently; a failed one never blocks the other, and failures are
// classified into missing-capability (reported upward as an advisory) versus
// anything else (logged and swallowed).
type Executor struct {
	Gateway ports.ModerationGateway
	Logger  *slog.Logger
}

func (e Executor) Enforce(ctx context.Context, poll entities.Poll) ports.EnforcementOutcome {
	logger := application.ResolveLogger(e.Logger)
	outcome := ports.EnforcementOutcome{Attempted: true}
	if e.Gateway == nil {
		return outcome
	}

	if poll.TriggerMessageID != 0 {
		err := e.Gateway.DeleteMessage(ctx, poll.ChatID, poll.TriggerMessageID)
		switch {
		case err == nil:
			outcome.MessageDeleted = true
		case errors.Is(err, domainerrors.ErrMissingCapability):
			outcome.MissingDeletePermission = true
			logger.Warn("no message delete permission",
				"event", "enforce_delete_forbidden",
				"module", "chat-moderation/poll-engine",
				"layer", "application",
				"poll_id", poll.PollID,
				"chat_id", poll.ChatID,
			)
		case errors.Is(err, domainerrors.ErrMessageNotFound):
			// Already gone, nothing to clean up.
		default:
			logger.Error("trigger message delete failed",
				"event", "enforce_delete_failed",
				"module", "chat-moderation/poll-engine",
				"layer", "application",
				"poll_id", poll.PollID,
				"chat_id", poll.ChatID,
				"error", err.Error(),
			)
		}
	}

	err := e.Gateway.RevokeAccess(ctx, poll.ChatID, poll.TargetID)
	switch {
	case err == nil:
		outcome.AccessRevoked = true
	case errors.Is(err, domainerrors.ErrMissingCapability):
		outcome.MissingBanPermission = true
		logger.Warn("no ban permission",
			"event", "enforce_ban_forbidden",
			"module", "chat-moderation/poll-engine",
			"layer", "application",
			"poll_id", poll.PollID,
			"chat_id", poll.ChatID,
		)
	default:
		logger.Error("access revoke failed",
			"event", "enforce_ban_failed",
			"module", "chat-moderation/poll-engine",
			"layer", "application",
			"poll_id", poll.PollID,
			"chat_id", poll.ChatID,
			"target_id", poll.TargetID,
			"error", err.Error(),
		)
	}
	return outcome
}

var _ ports.Enforcer = Executor{}
