package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"bobbot/contexts/chat-moderation/poll-engine/application/queries"
	"bobbot/contexts/chat-moderation/poll-engine/domain/entities"
	domainerrors "bobbot/contexts/chat-moderation/poll-engine/domain/errors"
	httptransport "bobbot/contexts/chat-moderation/poll-engine/transport/http"
)

// Handler exposes the poll read model for operators. It never mutates state;
// all writes go through the chat transport.
type Handler struct {
	Stats  queries.StatsUseCase
	Logger *slog.Logger
}

func (h Handler) GetPollHandler(ctx context.Context, pollID string) (httptransport.GetPollResponse, error) {
	status, err := h.Stats.PollStatus(ctx, pollID)
	if err != nil {
		return httptransport.GetPollResponse{}, err
	}
	resp := httptransport.GetPollResponse{Status: "success"}
	resp.Data.Poll = toPollDTO(status.Poll)
	resp.Data.Counts = toCountsDTO(status.Counts)
	resp.Data.HasWinner = status.HasWinner
	if status.HasWinner {
		resp.Data.Winner = string(status.Winner)
	}
	return resp, nil
}

func (h Handler) ListVotersHandler(
	ctx context.Context,
	pollID string,
	rawChoice string,
) (httptransport.ListVotersResponse, error) {
	choice, ok := entities.ParseChoice(rawChoice)
	if !ok {
		return httptransport.ListVotersResponse{}, domainerrors.ErrInvalidChoice
	}
	voters, err := h.Stats.Voters(ctx, pollID, choice)
	if err != nil {
		return httptransport.ListVotersResponse{}, err
	}
	resp := httptransport.ListVotersResponse{Status: "success"}
	resp.Data.PollID = pollID
	resp.Data.Choice = string(choice)
	resp.Data.Voters = voters
	resp.Data.Count = len(voters)
	return resp, nil
}

func (h Handler) ListOpenPollsHandler(ctx context.Context, chatID int64) (httptransport.ListOpenPollsResponse, error) {
	polls, err := h.Stats.OpenPolls(ctx, chatID)
	if err != nil {
		return httptransport.ListOpenPollsResponse{}, err
	}
	resp := httptransport.ListOpenPollsResponse{Status: "success"}
	resp.Data.ChatID = chatID
	resp.Data.Polls = make([]httptransport.PollDTO, 0, len(polls))
	for _, poll := range polls {
		resp.Data.Polls = append(resp.Data.Polls, toPollDTO(poll))
	}
	return resp, nil
}

func toPollDTO(poll entities.Poll) httptransport.PollDTO {
	return httptransport.PollDTO{
		PollID:           poll.PollID,
		Kind:             string(poll.Kind),
		ChatID:           poll.ChatID,
		SourceID:         poll.SourceID,
		TargetID:         poll.TargetID,
		Ended:            poll.Ended,
		Forced:           poll.Forced,
		TriggerMessageID: poll.TriggerMessageID,
		PollMessageID:    poll.PollMessageID,
		CreatedAt:        poll.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toCountsDTO(counts map[entities.Choice]int) map[string]int {
	out := make(map[string]int, len(counts))
	for choice, n := range counts {
		out[string(choice)] = n
	}
	return out
}
