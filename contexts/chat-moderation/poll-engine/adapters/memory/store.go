package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"bobbot/contexts/chat-moderation/poll-engine/domain/entities"
	domainerrors "bobbot/contexts/chat-moderation/poll-engine/domain/errors"
	"bobbot/contexts/chat-moderation/poll-engine/ports"

	"github.com/google/uuid"
)

type pollRow struct {
	poll entities.Poll
	seq  int64
}

type voteRow struct {
	vote entities.Vote
	seq  int64
}

type outboxRow struct {
	message     ports.OutboxMessage
	publishedAt *time.Time
}

// Store is an in-memory adapter implementing the repository, clock, id
// generator, and outbox ports. It is intended for tests and local wiring, and
// enforces the same open-poll uniqueness the durable store does.
type Store struct {
	mu sync.RWMutex

	polls  map[string]pollRow
	votes  map[string]voteRow
	outbox map[string]outboxRow
	seq    int64
	now    time.Time
}

func NewStore() *Store {
	return &Store{
		polls:  make(map[string]pollRow),
		votes:  make(map[string]voteRow),
		outbox: make(map[string]outboxRow),
	}
}

// SetNow freezes the store clock for deterministic tests.
func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now.UTC()
}

// Advance moves a frozen clock forward.
func (s *Store) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now.IsZero() {
		s.now = time.Now().UTC()
	}
	s.now = s.now.Add(d)
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.now.IsZero() {
		return time.Now().UTC()
	}
	return s.now
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

// PutPoll stores a poll bypassing the uniqueness check. Tests use it to stage
// anomaly states the reconciliation path has to clean up.
func (s *Store) PutPoll(poll entities.Poll) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.polls[poll.PollID] = pollRow{poll: poll, seq: s.seq}
}

func (s *Store) PollCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.polls)
}

func (s *Store) VoteCount(pollID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, row := range s.votes {
		if row.vote.PollID == pollID {
			count++
		}
	}
	return count
}

func (s *Store) CreatePoll(_ context.Context, poll entities.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.polls {
		if row.poll.Open() &&
			row.poll.ChatID == poll.ChatID &&
			row.poll.TargetID == poll.TargetID &&
			row.poll.Kind == poll.Kind {
			return domainerrors.ErrDuplicateOpenPoll
		}
	}
	s.seq++
	s.polls[poll.PollID] = pollRow{poll: poll, seq: s.seq}
	return nil
}

func (s *Store) GetPoll(_ context.Context, pollID string) (entities.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.polls[pollID]
	if !ok {
		return entities.Poll{}, domainerrors.ErrPollNotFound
	}
	return row.poll, nil
}

func (s *Store) ListOpenPolls(
	_ context.Context,
	chatID int64,
	targetID int64,
	kind entities.PollKind,
) ([]entities.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]pollRow, 0, 2)
	for _, row := range s.polls {
		if row.poll.Open() &&
			row.poll.ChatID == chatID &&
			row.poll.TargetID == targetID &&
			row.poll.Kind == kind {
			rows = append(rows, row)
		}
	}
	return sortPollsNewestFirst(rows), nil
}

func (s *Store) ListOpenPollsByChat(_ context.Context, chatID int64) ([]entities.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]pollRow, 0, 4)
	for _, row := range s.polls {
		if row.poll.Open() && row.poll.ChatID == chatID {
			rows = append(rows, row)
		}
	}
	return sortPollsNewestFirst(rows), nil
}

func (s *Store) SetPollMessageID(_ context.Context, pollID string, messageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.polls[pollID]
	if !ok {
		return domainerrors.ErrPollNotFound
	}
	row.poll.PollMessageID = messageID
	s.polls[pollID] = row
	return nil
}

func (s *Store) EndPoll(_ context.Context, pollID string, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.polls[pollID]
	if !ok {
		return false, domainerrors.ErrPollNotFound
	}
	if row.poll.Ended {
		return false, nil
	}
	row.poll.Ended = true
	s.polls[pollID] = row
	return true, nil
}

func (s *Store) DeletePoll(_ context.Context, pollID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.polls, pollID)
	return nil
}

func (s *Store) CountRecentPolls(
	_ context.Context,
	chatID int64,
	kind entities.PollKind,
	since time.Time,
) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, row := range s.polls {
		if row.poll.ChatID == chatID &&
			row.poll.Kind == kind &&
			!row.poll.Forced &&
			!row.poll.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *Store) SaveVote(_ context.Context, vote entities.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.votes[vote.VoteID]; ok {
		existing.vote = vote
		s.votes[vote.VoteID] = existing
		return nil
	}
	s.seq++
	s.votes[vote.VoteID] = voteRow{vote: vote, seq: s.seq}
	return nil
}

func (s *Store) GetVoteByVoter(_ context.Context, pollID string, voterID int64) (entities.Vote, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.votes {
		if row.vote.PollID == pollID && row.vote.VoterID == voterID {
			return row.vote, true, nil
		}
	}
	return entities.Vote{}, false, nil
}

func (s *Store) CountVotesByChoice(_ context.Context, pollID string) (map[entities.Choice]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[entities.Choice]int)
	for _, row := range s.votes {
		if row.vote.PollID == pollID {
			counts[row.vote.Choice]++
		}
	}
	return counts, nil
}

func (s *Store) ListVotersByChoice(_ context.Context, pollID string, choice entities.Choice) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]voteRow, 0, 8)
	for _, row := range s.votes {
		if row.vote.PollID == pollID && row.vote.Choice == choice {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].vote.CastAt.Equal(rows[j].vote.CastAt) {
			return rows[i].seq < rows[j].seq
		}
		return rows[i].vote.CastAt.Before(rows[j].vote.CastAt)
	})
	voters := make([]int64, 0, len(rows))
	for _, row := range rows {
		voters = append(voters, row.vote.VoterID)
	}
	return voters, nil
}

func (s *Store) AppendOutbox(_ context.Context, event ports.EventEnvelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox[event.EventID] = outboxRow{
		message: ports.OutboxMessage{
			OutboxID:     event.EventID,
			EventType:    event.EventType,
			PartitionKey: event.PartitionKey,
			Payload:      payload,
			Status:       "pending",
			CreatedAt:    event.OccurredAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.message.Status == "pending" {
			items = append(items, row.message)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[outboxID]
	if !ok {
		return nil
	}
	row.message.Status = "published"
	stamped := publishedAt.UTC()
	row.publishedAt = &stamped
	row.message.PublishedAt = row.publishedAt
	s.outbox[outboxID] = row
	return nil
}

func sortPollsNewestFirst(rows []pollRow) []entities.Poll {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].poll.CreatedAt.Equal(rows[j].poll.CreatedAt) {
			return rows[i].seq > rows[j].seq
		}
		return rows[i].poll.CreatedAt.After(rows[j].poll.CreatedAt)
	})
	polls := make([]entities.Poll, 0, len(rows))
	for _, row := range rows {
		polls = append(polls, row.poll)
	}
	return polls
}

var (
	_ ports.PollRepository   = (*Store)(nil)
	_ ports.VoteRepository   = (*Store)(nil)
	_ ports.OutboxRepository = (*Store)(nil)
	_ ports.Clock            = (*Store)(nil)
	_ ports.IDGenerator      = (*Store)(nil)
)
