package chatadapter

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"bobbot/contexts/chat-moderation/poll-engine/application"
	"bobbot/contexts/chat-moderation/poll-engine/application/commands"
	"bobbot/contexts/chat-moderation/poll-engine/application/queries"
	"bobbot/contexts/chat-moderation/poll-engine/domain/entities"
	domainerrors "bobbot/contexts/chat-moderation/poll-engine/domain/errors"
	"bobbot/contexts/chat-moderation/poll-engine/ports"
	transportchat "bobbot/contexts/chat-moderation/poll-engine/transport/chat"
)

var commandPattern = regexp.MustCompile(`(?i)^/(?:bob|ngmi)(?:@(?P<bot>\S+))?(?: +(?P<target>.+))?\s*$`)

// MemberDirectory is the identity surface the handler consumes. The member
// directory context implements it behind an adapter in the composition root.
type MemberDirectory interface {
	UserLink(ctx context.Context, userID int64) (string, error)
	IsAdmin(ctx context.Context, chatID int64, userID int64) (bool, error)
	IsParticipant(ctx context.Context, chatID int64, userID int64) (bool, error)
}

// Handler turns inbound chat updates into poll engine commands and renders
// the results back through the gateway.
type Handler struct {
	Polls     commands.PollUseCase
	Votes     commands.VoteUseCase
	Stats     queries.StatsUseCase
	Gateway   ports.ChatGateway
	Directory MemberDirectory

	BotID       int64
	BotUsername string
	Threshold   int

	// MessageWait bounds the wait for a racing creator to attach its poll
	// message id before we give up on the old poll.
	MessageWait time.Duration

	Logger *slog.Logger
}

// HandleKickCommand processes a /bob command: resolve the target, refuse
// protected targets, then create the poll (or point at the running one) and
// publish its message with the initiator's yes vote already counted.
func (h Handler) HandleKickCommand(ctx context.Context, cmd transportchat.Command) error {
	logger := application.ResolveLogger(h.Logger)
	match := commandPattern.FindStringSubmatch(cmd.Text)
	if match == nil {
		return nil
	}
	if bot := match[commandPattern.SubexpIndex("bot")]; bot != "" && h.BotUsername != "" &&
		!strings.EqualFold(bot, h.BotUsername) {
		// Addressed to some other bot.
		return nil
	}
	arg := strings.TrimSpace(match[commandPattern.SubexpIndex("target")])

	var targetID int64
	triggerMessageID := int64(0)
	replyTo := cmd.MessageID

	switch {
	case arg != "":
		if len(cmd.Mentions) == 0 {
			text := transportchat.NoMentionText
			if cmd.ReplyToMessageID != 0 {
				text = transportchat.NoMentionOnReplyText
			}
			_, err := h.Gateway.SendReply(ctx, cmd.ChatID, cmd.MessageID, text, nil)
			return err
		}
		targetID = cmd.Mentions[0]
	case cmd.ReplyToMessageID != 0:
		msg, err := h.Gateway.GetMessage(ctx, cmd.ChatID, cmd.ReplyToMessageID)
		if err != nil {
			return err
		}
		targetID = msg.AuthorID
		triggerMessageID = cmd.ReplyToMessageID
		replyTo = cmd.ReplyToMessageID
	default:
		_, err := h.Gateway.SendReply(ctx, cmd.ChatID, cmd.MessageID, transportchat.ReplyInsteadText, nil)
		return err
	}

	if cmd.SenderID <= 0 || targetID <= 0 {
		logger.Warn("kick command with a non-user sender or target",
			"event", "kick_command_rejected",
			"module", "chat-moderation/poll-engine",
			"layer", "adapter",
			"chat_id", cmd.ChatID,
			"sender_id", cmd.SenderID,
			"target_id", targetID,
		)
		_, err := h.Gateway.SendReply(ctx, cmd.ChatID, cmd.MessageID, transportchat.RefusalText, nil)
		return err
	}

	if targetID == h.BotID {
		return h.refuse(ctx, cmd, targetID, "target is the bot")
	}
	targetIsAdmin, err := h.Directory.IsAdmin(ctx, cmd.ChatID, targetID)
	if err != nil {
		return err
	}
	if targetIsAdmin {
		return h.refuse(ctx, cmd, targetID, "target is an admin")
	}

	forced, err := h.Directory.IsAdmin(ctx, cmd.ChatID, cmd.SenderID)
	if err != nil {
		return err
	}

	result, err := h.Polls.GetOrCreatePoll(ctx, commands.GetOrCreatePollCommand{
		ChatID:           cmd.ChatID,
		SourceID:         cmd.SenderID,
		TargetID:         targetID,
		TriggerMessageID: triggerMessageID,
		Kind:             entities.PollKindBan,
		Forced:           forced,
	})
	if err != nil {
		var limitErr *domainerrors.PollLimitReachedError
		if errors.As(err, &limitErr) {
			text := transportchat.FormatLimitReached(transportchat.PrettyDuration(limitErr.Window))
			_, sendErr := h.Gateway.SendReply(ctx, cmd.ChatID, cmd.MessageID, text, nil)
			return sendErr
		}
		return err
	}
	poll := result.Poll

	if result.AlreadyExists {
		handled, fresh, err := h.pointAtExistingPoll(ctx, cmd, poll)
		if handled || err != nil {
			return err
		}
		poll = fresh
	}

	voteResult, err := h.Votes.CastVote(ctx, commands.CastVoteCommand{
		PollID:  poll.PollID,
		VoterID: cmd.SenderID,
		Choice:  entities.ChoiceYes,
	})
	if err != nil {
		return err
	}
	text, buttons, err := h.renderVoteResult(ctx, voteResult)
	if err != nil {
		return err
	}
	messageID, err := h.Gateway.SendReply(ctx, cmd.ChatID, replyTo, text, buttons)
	if err != nil {
		logger.Warn("poll message could not be sent, discarding poll",
			"event", "poll_message_send_failed",
			"module", "chat-moderation/poll-engine",
			"layer", "adapter",
			"poll_id", poll.PollID,
			"chat_id", cmd.ChatID,
			"error", err.Error(),
		)
		return h.Polls.DiscardPoll(ctx, poll.PollID)
	}
	return h.Polls.AttachPollMessage(ctx, poll.PollID, messageID)
}

// pointAtExistingPoll handles the already-exists arm: vote yes for the
// initiator when possible and answer with a link to the running poll. When
// the old poll message turns out to be gone it force-ends the orphan and
// hands back a fresh forced poll for the regular publish path.
func (h Handler) pointAtExistingPoll(
	ctx context.Context,
	cmd transportchat.Command,
	poll entities.Poll,
) (bool, entities.Poll, error) {
	logger := application.ResolveLogger(h.Logger)

	if poll.PollMessageID == 0 {
		// The creating request may not have attached its message yet.
		logger.Warn("existing poll has no message id yet, waiting",
			"event", "poll_message_pending",
			"module", "chat-moderation/poll-engine",
			"layer", "adapter",
			"poll_id", poll.PollID,
		)
		h.waitForAttach(ctx)
		refetched, err := h.Polls.GetPoll(ctx, poll.PollID)
		if err == nil {
			poll = refetched
		}
	}

	reachable := false
	if poll.PollMessageID != 0 {
		_, err := h.Gateway.GetMessage(ctx, poll.ChatID, poll.PollMessageID)
		switch {
		case err == nil:
			reachable = true
		case errors.Is(err, domainerrors.ErrMessageNotFound):
		default:
			return true, poll, err
		}
	}
	if !reachable {
		logger.Warn("existing poll message is gone, recreating",
			"event", "poll_message_lost",
			"module", "chat-moderation/poll-engine",
			"layer", "adapter",
			"poll_id", poll.PollID,
		)
		if _, err := h.Polls.ForceEndPoll(ctx, poll.PollID); err != nil {
			return true, poll, err
		}
		result, err := h.Polls.GetOrCreatePoll(ctx, commands.GetOrCreatePollCommand{
			ChatID:           poll.ChatID,
			SourceID:         cmd.SenderID,
			TargetID:         poll.TargetID,
			TriggerMessageID: cmd.ReplyToMessageID,
			Kind:             poll.Kind,
			Forced:           true,
		})
		if err != nil {
			return true, poll, err
		}
		return false, result.Poll, nil
	}

	link := transportchat.MessageLink(poll.ChatID, poll.PollMessageID)
	isMember, err := h.Directory.IsParticipant(ctx, cmd.ChatID, cmd.SenderID)
	if err != nil {
		return true, poll, err
	}
	if !isMember {
		logger.Warn("non-participant tried to join a poll by command",
			"event", "poll_vote_rejected",
			"module", "chat-moderation/poll-engine",
			"layer", "adapter",
			"poll_id", poll.PollID,
			"sender_id", cmd.SenderID,
		)
		_, sendErr := h.Gateway.SendReply(ctx, cmd.ChatID, cmd.MessageID, transportchat.FormatExistingPoll(link, false), nil)
		return true, poll, sendErr
	}

	voteResult, err := h.Votes.CastVote(ctx, commands.CastVoteCommand{
		PollID:  poll.PollID,
		VoterID: cmd.SenderID,
		Choice:  entities.ChoiceYes,
	})
	if err != nil {
		return true, poll, err
	}
	if voteResult.Unchanged || voteResult.AlreadyEnded {
		_, sendErr := h.Gateway.SendReply(ctx, cmd.ChatID, cmd.MessageID, transportchat.FormatExistingPoll(link, false), nil)
		return true, poll, sendErr
	}
	text, buttons, err := h.renderVoteResult(ctx, voteResult)
	if err != nil {
		return true, poll, err
	}
	if err := h.Gateway.EditMessage(ctx, poll.ChatID, poll.PollMessageID, text, buttons); err != nil {
		return true, poll, err
	}
	_, sendErr := h.Gateway.SendReply(ctx, cmd.ChatID, cmd.MessageID, transportchat.FormatExistingPoll(link, true), nil)
	return true, poll, sendErr
}

// HandleVoteCallback processes a vote button press.
func (h Handler) HandleVoteCallback(ctx context.Context, cb transportchat.Callback) error {
	logger := application.ResolveLogger(h.Logger)

	decoded, err := transportchat.DecodeVoteCallback(cb.Data)
	if err != nil {
		logger.Error("vote callback payload did not parse",
			"event", "vote_callback_malformed",
			"module", "chat-moderation/poll-engine",
			"layer", "adapter",
			"chat_id", cb.ChatID,
			"data", cb.Data,
		)
		return h.markMessageBroken(ctx, cb)
	}

	poll, err := h.Polls.GetPoll(ctx, decoded.PollID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrPollNotFound) {
			// Stale or forged payload.
			logger.Error("vote callback referenced an unknown poll",
				"event", "vote_callback_unknown_poll",
				"module", "chat-moderation/poll-engine",
				"layer", "adapter",
				"poll_id", decoded.PollID,
			)
			return h.markMessageBroken(ctx, cb)
		}
		return err
	}

	isMember, err := h.Directory.IsParticipant(ctx, poll.ChatID, cb.SenderID)
	if err != nil {
		return err
	}
	if !isMember {
		logger.Warn("non-participant tried to vote",
			"event", "poll_vote_rejected",
			"module", "chat-moderation/poll-engine",
			"layer", "adapter",
			"poll_id", poll.PollID,
			"sender_id", cb.SenderID,
		)
		return h.Gateway.AnswerCallback(ctx, cb.CallbackID, "")
	}

	result, err := h.Votes.CastVote(ctx, commands.CastVoteCommand{
		PollID:  poll.PollID,
		VoterID: cb.SenderID,
		Choice:  decoded.Choice,
	})
	if err != nil {
		return err
	}
	switch {
	case result.AlreadyEnded:
		return h.Gateway.AnswerCallback(ctx, cb.CallbackID, transportchat.PollEndedAnswer)
	case result.Unchanged:
		return h.Gateway.AnswerCallback(ctx, cb.CallbackID, transportchat.SameChoiceAnswer)
	}

	text, buttons, err := h.renderVoteResult(ctx, result)
	if err != nil {
		return err
	}
	if err := h.Gateway.EditMessage(ctx, cb.ChatID, cb.MessageID, text, buttons); err != nil {
		return err
	}
	return h.Gateway.AnswerCallback(ctx, cb.CallbackID, transportchat.VotedAnswer(decoded.Choice))
}

// renderVoteResult builds the poll message for the state the cast left
// behind: live tallies with vote buttons while open, the verdict with the
// winning voters (and any permissions advisory) once ended.
func (h Handler) renderVoteResult(ctx context.Context, result commands.CastVoteResult) (string, []ports.Button, error) {
	poll := result.Poll
	targetLink, err := h.Directory.UserLink(ctx, poll.TargetID)
	if err != nil {
		return "", nil, err
	}

	if !poll.Ended {
		sourceLink, err := h.Directory.UserLink(ctx, poll.SourceID)
		if err != nil {
			return "", nil, err
		}
		view := transportchat.FormatOpenPoll(poll, sourceLink, targetLink, result.Counts, h.threshold())
		return view.Text, view.Buttons, nil
	}

	if !result.HasWinner {
		return transportchat.FormatEndedWithoutWinner(targetLink), nil, nil
	}

	voters, err := h.Stats.Voters(ctx, poll.PollID, result.Winner)
	if err != nil {
		return "", nil, err
	}
	links := make([]string, 0, len(voters))
	for _, voterID := range voters {
		link, err := h.Directory.UserLink(ctx, voterID)
		if err != nil {
			return "", nil, err
		}
		links = append(links, link)
	}
	text := transportchat.FormatEndedPoll(targetLink, result.Winner, links)
	text += transportchat.PermissionsAdvisory(
		result.Enforcement.MissingDeletePermission,
		result.Enforcement.MissingBanPermission,
	)
	return text, nil, nil
}

// markMessageBroken strips the buttons off a poll message that produced an
// unusable callback and appends a generic failure note.
func (h Handler) markMessageBroken(ctx context.Context, cb transportchat.Callback) error {
	text := transportchat.SomethingWentWrong
	if msg, err := h.Gateway.GetMessage(ctx, cb.ChatID, cb.MessageID); err == nil && msg.Text != "" {
		text = msg.Text + "\n\n" + transportchat.SomethingWentWrong
	}
	if err := h.Gateway.EditMessage(ctx, cb.ChatID, cb.MessageID, text, nil); err != nil {
		return err
	}
	return h.Gateway.AnswerCallback(ctx, cb.CallbackID, "")
}

func (h Handler) refuse(ctx context.Context, cmd transportchat.Command, targetID int64, reason string) error {
	application.ResolveLogger(h.Logger).Warn("kick command refused",
		"event", "kick_command_refused",
		"module", "chat-moderation/poll-engine",
		"layer", "adapter",
		"chat_id", cmd.ChatID,
		"sender_id", cmd.SenderID,
		"target_id", targetID,
		"reason", reason,
	)
	_, err := h.Gateway.SendReply(ctx, cmd.ChatID, cmd.MessageID, transportchat.RefusalText, nil)
	return err
}

func (h Handler) waitForAttach(ctx context.Context) {
	wait := h.MessageWait
	if wait <= 0 {
		wait = time.Second
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (h Handler) threshold() int {
	if h.Threshold <= 0 {
		return 3
	}
	return h.Threshold
}
