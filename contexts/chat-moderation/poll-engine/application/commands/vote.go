package commands

import (
	"context"
	"log/slog"
	"time"

	application "bobbot/contexts/chat-moderation/poll-engine/application"
	"bobbot/contexts/chat-moderation/poll-engine/domain/entities"
	domainerrors "bobbot/contexts/chat-moderation/poll-engine/domain/errors"
	"bobbot/contexts/chat-moderation/poll-engine/ports"
)

type CastVoteCommand struct {
	PollID  string
	VoterID int64
	Choice  entities.Choice
}

// CastVoteResult reports what the cast did. Exactly one of the markers
// applies: AlreadyEnded (short-circuit, nothing mutated), Unchanged (duplicate
// identical vote), or Recorded. Finalized is true only for the single call
// that flipped the poll to ended.
type CastVoteResult struct {
	Poll         entities.Poll
	Counts       map[entities.Choice]int
	Recorded     bool
	Unchanged    bool
	AlreadyEnded bool
	Finalized    bool
	Winner       entities.Choice
	HasWinner    bool
	Enforcement  ports.EnforcementOutcome
}

// VoteUseCase casts votes and owns the one-shot finalization transition.
type VoteUseCase struct {
	Polls     ports.PollRepository
	Votes     ports.VoteRepository
	Outbox    ports.OutboxWriter
	Enforcer  ports.Enforcer
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Threshold int
	Logger    *slog.Logger
}

// CastVote records (or updates) the voter's choice and finalizes the poll when
// a choice reaches threshold.
//
// The ended flag is re-read immediately before mutating, and the flip itself
// goes through the repository's compare-and-set, so two concurrent casts that
// both cross the threshold produce exactly one enforcement run.
func (uc VoteUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if _, ok := entities.ParseChoice(string(cmd.Choice)); !ok {
		return CastVoteResult{}, domainerrors.ErrInvalidChoice
	}

	poll, err := uc.Polls.GetPoll(ctx, cmd.PollID)
	if err != nil {
		return CastVoteResult{}, err
	}
	if poll.Ended {
		return CastVoteResult{Poll: poll, AlreadyEnded: true}, nil
	}

	now := uc.now()
	existing, found, err := uc.Votes.GetVoteByVoter(ctx, poll.PollID, cmd.VoterID)
	if err != nil {
		return CastVoteResult{}, err
	}
	switch {
	case found && existing.Choice == cmd.Choice:
		counts, err := uc.Votes.CountVotesByChoice(ctx, poll.PollID)
		if err != nil {
			return CastVoteResult{}, err
		}
		return CastVoteResult{Poll: poll, Counts: counts, Unchanged: true}, nil
	case found:
		existing.Choice = cmd.Choice
		existing.UpdatedAt = now
		if err := uc.Votes.SaveVote(ctx, existing); err != nil {
			return CastVoteResult{}, err
		}
		logger.Info("vote choice updated",
			"event", "vote_updated",
			"module", "chat-moderation/poll-engine",
			"layer", "application",
			"poll_id", poll.PollID,
			"vote_id", existing.VoteID,
			"voter_id", cmd.VoterID,
			"choice", string(cmd.Choice),
		)
	default:
		voteID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return CastVoteResult{}, err
		}
		vote := entities.Vote{
			VoteID:    voteID,
			PollID:    poll.PollID,
			VoterID:   cmd.VoterID,
			Choice:    cmd.Choice,
			CastAt:    now,
			UpdatedAt: now,
		}
		if err := uc.Votes.SaveVote(ctx, vote); err != nil {
			return CastVoteResult{}, err
		}
		logger.Info("vote cast",
			"event", "vote_cast",
			"module", "chat-moderation/poll-engine",
			"layer", "application",
			"poll_id", poll.PollID,
			"vote_id", vote.VoteID,
			"voter_id", cmd.VoterID,
			"choice", string(cmd.Choice),
		)
	}

	counts, err := uc.Votes.CountVotesByChoice(ctx, poll.PollID)
	if err != nil {
		return CastVoteResult{}, err
	}
	result := CastVoteResult{Poll: poll, Counts: counts, Recorded: true}

	winner, done := entities.ResolveWinner(counts, uc.threshold())
	if !done {
		return result, nil
	}
	result.Winner = winner
	result.HasWinner = true

	transitioned, err := uc.Polls.EndPoll(ctx, poll.PollID, now)
	if err != nil {
		return CastVoteResult{}, err
	}
	result.Poll.Ended = true
	if !transitioned {
		// A concurrent cast finalized first; repeating the flip is harmless
		// and must not repeat the side effects.
		return result, nil
	}
	result.Finalized = true

	logger.Info("poll finalized",
		"event", "poll_finalized",
		"module", "chat-moderation/poll-engine",
		"layer", "application",
		"poll_id", poll.PollID,
		"winner", string(winner),
		"yes_count", counts[entities.ChoiceYes],
		"no_count", counts[entities.ChoiceNo],
	)

	if err := uc.appendFinalizedEvent(ctx, result.Poll, winner, counts, now); err != nil {
		return CastVoteResult{}, err
	}
	if winner == entities.ChoiceYes && uc.Enforcer != nil {
		result.Enforcement = uc.Enforcer.Enforce(ctx, result.Poll)
	}
	return result, nil
}

func (uc VoteUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func (uc VoteUseCase) threshold() int {
	if uc.Threshold <= 0 {
		return 3
	}
	return uc.Threshold
}
