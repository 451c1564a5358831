package queries

import (
	"context"

	"bobbot/contexts/chat-moderation/poll-engine/domain/entities"
	"bobbot/contexts/chat-moderation/poll-engine/ports"
)

// PollStatus is the read model served by the ops API and the transport
// renderer.
type PollStatus struct {
	Poll      entities.Poll
	Counts    map[entities.Choice]int
	Finished  bool
	Winner    entities.Choice
	HasWinner bool
}

type StatsUseCase struct {
	Polls     ports.PollRepository
	Votes     ports.VoteRepository
	Threshold int
}

// VoteStats groups the poll's votes by choice.
func (uc StatsUseCase) VoteStats(ctx context.Context, pollID string) (map[entities.Choice]int, error) {
	return uc.Votes.CountVotesByChoice(ctx, pollID)
}

// Winner resolves the decisive choice, if any choice reached threshold.
func (uc StatsUseCase) Winner(ctx context.Context, pollID string) (entities.Choice, bool, error) {
	counts, err := uc.Votes.CountVotesByChoice(ctx, pollID)
	if err != nil {
		return "", false, err
	}
	winner, done := entities.ResolveWinner(counts, uc.threshold())
	return winner, done, nil
}

// Voters lists voter ids for a choice in first-cast order.
func (uc StatsUseCase) Voters(ctx context.Context, pollID string, choice entities.Choice) ([]int64, error) {
	return uc.Votes.ListVotersByChoice(ctx, pollID, choice)
}

func (uc StatsUseCase) PollStatus(ctx context.Context, pollID string) (PollStatus, error) {
	poll, err := uc.Polls.GetPoll(ctx, pollID)
	if err != nil {
		return PollStatus{}, err
	}
	counts, err := uc.Votes.CountVotesByChoice(ctx, pollID)
	if err != nil {
		return PollStatus{}, err
	}
	status := PollStatus{Poll: poll, Counts: counts}
	status.Winner, status.HasWinner = entities.ResolveWinner(counts, uc.threshold())
	status.Finished = poll.Ended || status.HasWinner
	return status, nil
}

func (uc StatsUseCase) OpenPolls(ctx context.Context, chatID int64) ([]entities.Poll, error) {
	return uc.Polls.ListOpenPollsByChat(ctx, chatID)
}

func (uc StatsUseCase) threshold() int {
	if uc.Threshold <= 0 {
		return 3
	}
	return uc.Threshold
}
