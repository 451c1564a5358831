package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"bobbot/contexts/chat-moderation/poll-engine/domain/entities"
	domainerrors "bobbot/contexts/chat-moderation/poll-engine/domain/errors"
)

func newBanPoll(id string, chatID int64, targetID int64, createdAt time.Time) entities.Poll {
	return entities.Poll{
		PollID:    id,
		Kind:      entities.PollKindBan,
		ChatID:    chatID,
		SourceID:  10,
		TargetID:  targetID,
		CreatedAt: createdAt,
	}
}

func TestCreatePollRejectsSecondOpenPollForSameKey(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.CreatePoll(ctx, newBanPoll("poll-1", -1, 20, base)); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := store.CreatePoll(ctx, newBanPoll("poll-2", -1, 20, base.Add(time.Minute)))
	if !errors.Is(err, domainerrors.ErrDuplicateOpenPoll) {
		t.Fatalf("got %v, want ErrDuplicateOpenPoll", err)
	}

	// A different target in the same chat is a different key.
	if err := store.CreatePoll(ctx, newBanPoll("poll-3", -1, 21, base)); err != nil {
		t.Fatalf("distinct target: %v", err)
	}
}

func TestCreatePollAllowsNewPollAfterEnd(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.CreatePoll(ctx, newBanPoll("poll-1", -1, 20, base)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.EndPoll(ctx, "poll-1", base.Add(time.Minute)); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := store.CreatePoll(ctx, newBanPoll("poll-2", -1, 20, base.Add(2*time.Minute))); err != nil {
		t.Fatalf("create after end: %v", err)
	}
}

func TestEndPollTransitionsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.CreatePoll(ctx, newBanPoll("poll-1", -1, 20, base)); err != nil {
		t.Fatalf("create: %v", err)
	}

	transitioned, err := store.EndPoll(ctx, "poll-1", base.Add(time.Minute))
	if err != nil || !transitioned {
		t.Fatalf("first end: transitioned=%v err=%v", transitioned, err)
	}
	transitioned, err = store.EndPoll(ctx, "poll-1", base.Add(2*time.Minute))
	if err != nil || transitioned {
		t.Fatalf("second end: transitioned=%v err=%v", transitioned, err)
	}

	if _, err := store.EndPoll(ctx, "missing", base); !errors.Is(err, domainerrors.ErrPollNotFound) {
		t.Fatalf("missing poll: got %v, want ErrPollNotFound", err)
	}
}

func TestListOpenPollsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store.PutPoll(newBanPoll("poll-old", -1, 20, base))
	store.PutPoll(newBanPoll("poll-new", -1, 20, base.Add(time.Minute)))
	// Same timestamp as poll-new; insertion order breaks the tie.
	store.PutPoll(newBanPoll("poll-tie", -1, 20, base.Add(time.Minute)))

	polls, err := store.ListOpenPolls(ctx, -1, 20, entities.PollKindBan)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(polls) != 3 {
		t.Fatalf("expected 3 open polls, got %d", len(polls))
	}
	if polls[0].PollID != "poll-tie" || polls[1].PollID != "poll-new" || polls[2].PollID != "poll-old" {
		t.Fatalf("wrong order: %s, %s, %s", polls[0].PollID, polls[1].PollID, polls[2].PollID)
	}
}

func TestListOpenPollsByChatSkipsEnded(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store.PutPoll(newBanPoll("poll-1", -1, 20, base))
	ended := newBanPoll("poll-2", -1, 21, base.Add(time.Minute))
	ended.Ended = true
	store.PutPoll(ended)
	store.PutPoll(newBanPoll("poll-3", -2, 20, base))

	polls, err := store.ListOpenPollsByChat(ctx, -1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(polls) != 1 || polls[0].PollID != "poll-1" {
		t.Fatalf("got %+v", polls)
	}
}

func TestCountRecentPollsIgnoresForcedAndOld(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store.PutPoll(newBanPoll("poll-old", -1, 20, base.Add(-time.Hour)))
	store.PutPoll(newBanPoll("poll-recent", -1, 21, base.Add(-time.Minute)))
	forced := newBanPoll("poll-forced", -1, 22, base)
	forced.Forced = true
	store.PutPoll(forced)

	count, err := store.CountRecentPolls(ctx, -1, entities.PollKindBan, base.Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("got %d, want 1", count)
	}
}

func TestListVotersByChoiceFirstCastOrder(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	votes := []entities.Vote{
		{VoteID: "v-1", PollID: "poll-1", VoterID: 30, Choice: entities.ChoiceYes, CastAt: base.Add(2 * time.Minute)},
		{VoteID: "v-2", PollID: "poll-1", VoterID: 10, Choice: entities.ChoiceYes, CastAt: base},
		{VoteID: "v-3", PollID: "poll-1", VoterID: 20, Choice: entities.ChoiceYes, CastAt: base.Add(time.Minute)},
		{VoteID: "v-4", PollID: "poll-1", VoterID: 40, Choice: entities.ChoiceNo, CastAt: base},
		{VoteID: "v-5", PollID: "poll-2", VoterID: 50, Choice: entities.ChoiceYes, CastAt: base},
	}
	for _, vote := range votes {
		if err := store.SaveVote(ctx, vote); err != nil {
			t.Fatalf("save %s: %v", vote.VoteID, err)
		}
	}

	voters, err := store.ListVotersByChoice(ctx, "poll-1", entities.ChoiceYes)
	if err != nil {
		t.Fatalf("list voters: %v", err)
	}
	if len(voters) != 3 || voters[0] != 10 || voters[1] != 20 || voters[2] != 30 {
		t.Fatalf("got %v, want [10 20 30]", voters)
	}
}

func TestSaveVoteUpdatesExistingRow(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	vote := entities.Vote{VoteID: "v-1", PollID: "poll-1", VoterID: 10, Choice: entities.ChoiceYes, CastAt: base}
	if err := store.SaveVote(ctx, vote); err != nil {
		t.Fatalf("save: %v", err)
	}
	vote.Choice = entities.ChoiceNo
	vote.UpdatedAt = base.Add(time.Minute)
	if err := store.SaveVote(ctx, vote); err != nil {
		t.Fatalf("resave: %v", err)
	}

	counts, err := store.CountVotesByChoice(ctx, "poll-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[entities.ChoiceYes] != 0 || counts[entities.ChoiceNo] != 1 {
		t.Fatalf("got counts %v", counts)
	}
	got, found, err := store.GetVoteByVoter(ctx, "poll-1", 10)
	if err != nil || !found {
		t.Fatalf("lookup: found=%v err=%v", found, err)
	}
	if got.Choice != entities.ChoiceNo || !got.CastAt.Equal(base) {
		t.Fatalf("got %+v", got)
	}
}
