package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"bobbot/contexts/chat-moderation/poll-engine/adapters/memory"
	"bobbot/contexts/chat-moderation/poll-engine/application/enforcement"
	"bobbot/contexts/chat-moderation/poll-engine/domain/entities"
	domainerrors "bobbot/contexts/chat-moderation/poll-engine/domain/errors"
)

type voteFixture struct {
	store   *memory.Store
	gateway *memory.Gateway
	polls   PollUseCase
	votes   VoteUseCase
	poll    entities.Poll
}

func newVoteFixture(t *testing.T) *voteFixture {
	t.Helper()
	store := memory.NewStore()
	store.SetNow(time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC))
	gateway := memory.NewGateway()

	polls := PollUseCase{Polls: store, Votes: store, Clock: store, IDGen: store}
	votes := VoteUseCase{
		Polls:    store,
		Votes:    store,
		Outbox:   store,
		Enforcer: enforcement.Executor{Gateway: gateway},
		Clock:    store,
		IDGen:    store,
	}

	triggerID := gateway.SeedMessage(-1, 20, "offending message")
	created, err := polls.GetOrCreatePoll(context.Background(), GetOrCreatePollCommand{
		ChatID:           -1,
		SourceID:         10,
		TargetID:         20,
		TriggerMessageID: triggerID,
	})
	if err != nil {
		t.Fatalf("create poll: %v", err)
	}
	return &voteFixture{
		store:   store,
		gateway: gateway,
		polls:   polls,
		votes:   votes,
		poll:    created.Poll,
	}
}

func (f *voteFixture) cast(t *testing.T, voterID int64, choice entities.Choice) CastVoteResult {
	t.Helper()
	result, err := f.votes.CastVote(context.Background(), CastVoteCommand{
		PollID:  f.poll.PollID,
		VoterID: voterID,
		Choice:  choice,
	})
	if err != nil {
		t.Fatalf("cast vote for %d: %v", voterID, err)
	}
	return result
}

func TestCastVoteCountsTowardThreshold(t *testing.T) {
	f := newVoteFixture(t)

	first := f.cast(t, 11, entities.ChoiceYes)
	if !first.Recorded || first.Finalized {
		t.Fatalf("first vote should record without finalizing: %+v", first)
	}
	if first.Counts[entities.ChoiceYes] != 1 {
		t.Fatalf("expected one yes vote, got %d", first.Counts[entities.ChoiceYes])
	}

	second := f.cast(t, 12, entities.ChoiceYes)
	if second.Finalized {
		t.Fatalf("two votes must not finalize at the default threshold")
	}

	third := f.cast(t, 13, entities.ChoiceYes)
	if !third.Finalized || third.Winner != entities.ChoiceYes {
		t.Fatalf("third yes vote should finalize with a yes winner: %+v", third)
	}
	if !third.Poll.Ended {
		t.Fatalf("result poll should carry the ended state")
	}
}

func TestCastVoteYesWinnerEnforces(t *testing.T) {
	f := newVoteFixture(t)

	for voter := int64(11); voter <= 13; voter++ {
		f.cast(t, voter, entities.ChoiceYes)
	}
	if !f.gateway.Banned(-1, 20) {
		t.Fatalf("target should have been banned")
	}
	if _, ok := f.gateway.MessageText(-1, f.poll.TriggerMessageID); ok {
		t.Fatalf("trigger message should have been deleted")
	}

	pending, err := f.store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one finalize event, got %d", len(pending))
	}
	if pending[0].EventType != "poll.finalized" {
		t.Fatalf("unexpected event type %q", pending[0].EventType)
	}
	if pending[0].PartitionKey != f.poll.PollID {
		t.Fatalf("event should be keyed by poll id, got %q", pending[0].PartitionKey)
	}
}

func TestCastVoteFinalizesExactlyOnce(t *testing.T) {
	f := newVoteFixture(t)

	for voter := int64(11); voter <= 13; voter++ {
		f.cast(t, voter, entities.ChoiceYes)
	}

	late := f.cast(t, 14, entities.ChoiceYes)
	if !late.AlreadyEnded {
		t.Fatalf("vote on an ended poll should report already-ended: %+v", late)
	}
	if late.Recorded {
		t.Fatalf("already-ended vote must not mutate anything")
	}
	if f.store.VoteCount(f.poll.PollID) != 3 {
		t.Fatalf("expected 3 votes, got %d", f.store.VoteCount(f.poll.PollID))
	}
	if f.gateway.RevokeCalls() != 1 {
		t.Fatalf("enforcement ran %d times, want exactly once", f.gateway.RevokeCalls())
	}
	pending, err := f.store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected exactly one finalize event, got %d", len(pending))
	}
}

func TestCastVoteNoWinnerSkipsEnforcement(t *testing.T) {
	f := newVoteFixture(t)

	var last CastVoteResult
	for voter := int64(11); voter <= 13; voter++ {
		last = f.cast(t, voter, entities.ChoiceNo)
	}
	if !last.Finalized || last.Winner != entities.ChoiceNo {
		t.Fatalf("three no votes should finalize with a no winner: %+v", last)
	}
	if f.gateway.RevokeCalls() != 0 {
		t.Fatalf("a no verdict must not ban anyone")
	}
	if f.gateway.Banned(-1, 20) {
		t.Fatalf("target should not be banned on a no verdict")
	}
}

func TestCastVoteIdenticalChoiceIsNoOp(t *testing.T) {
	f := newVoteFixture(t)

	f.cast(t, 11, entities.ChoiceYes)
	repeat := f.cast(t, 11, entities.ChoiceYes)
	if !repeat.Unchanged {
		t.Fatalf("identical repeat vote should report unchanged: %+v", repeat)
	}
	if repeat.Counts[entities.ChoiceYes] != 1 {
		t.Fatalf("repeat vote must not change the tally")
	}
	if f.store.VoteCount(f.poll.PollID) != 1 {
		t.Fatalf("expected a single vote row, got %d", f.store.VoteCount(f.poll.PollID))
	}
}

func TestCastVoteChoiceUpdateKeepsFirstCastTime(t *testing.T) {
	f := newVoteFixture(t)
	ctx := context.Background()

	f.cast(t, 11, entities.ChoiceNo)
	castAt := f.store.Now()

	f.store.Advance(time.Minute)
	updated := f.cast(t, 11, entities.ChoiceYes)
	if !updated.Recorded || updated.Unchanged {
		t.Fatalf("switching choices should record: %+v", updated)
	}
	if updated.Counts[entities.ChoiceNo] != 0 || updated.Counts[entities.ChoiceYes] != 1 {
		t.Fatalf("tally should reflect the switch, got %+v", updated.Counts)
	}

	vote, found, err := f.store.GetVoteByVoter(ctx, f.poll.PollID, 11)
	if err != nil || !found {
		t.Fatalf("get vote: found=%v err=%v", found, err)
	}
	if !vote.CastAt.Equal(castAt) {
		t.Fatalf("CastAt should survive a choice update, got %s want %s", vote.CastAt, castAt)
	}
	if !vote.UpdatedAt.After(castAt) {
		t.Fatalf("UpdatedAt should move forward on update")
	}
}

func TestCastVoteValidation(t *testing.T) {
	f := newVoteFixture(t)
	ctx := context.Background()

	_, err := f.votes.CastVote(ctx, CastVoteCommand{PollID: f.poll.PollID, VoterID: 11, Choice: "maybe"})
	if !errors.Is(err, domainerrors.ErrInvalidChoice) {
		t.Fatalf("expected invalid choice error, got %v", err)
	}

	_, err = f.votes.CastVote(ctx, CastVoteCommand{PollID: "missing", VoterID: 11, Choice: entities.ChoiceYes})
	if !errors.Is(err, domainerrors.ErrPollNotFound) {
		t.Fatalf("expected poll not found, got %v", err)
	}
}
