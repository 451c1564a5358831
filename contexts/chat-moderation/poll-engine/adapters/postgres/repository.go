package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"bobbot/contexts/chat-moderation/poll-engine/domain/entities"
	domainerrors "bobbot/contexts/chat-moderation/poll-engine/domain/errors"
	"bobbot/contexts/chat-moderation/poll-engine/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates the tables and the indexes the engine's correctness leans
// on: the partial unique index is the storage-level guarantee behind
// at-most-one open poll per (chat, target, kind).
func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&pollModel{}, &voteModel{}, &outboxModel{}); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_polls_open_key ON polls (chat_id, target_id, kind) WHERE NOT ended`,
	).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Exec(
		`CREATE INDEX IF NOT EXISTS idx_polls_creation_window ON polls (chat_id, kind, created_at) WHERE NOT forced`,
	).Error
}

func (r *Repository) CreatePoll(ctx context.Context, poll entities.Poll) error {
	row := pollModelFromEntity(poll)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateOpenPoll
		}
		return r.logError("poll_repo_create_failed", err,
			"poll_id", poll.PollID,
			"chat_id", poll.ChatID,
			"target_id", poll.TargetID,
		)
	}
	return nil
}

func (r *Repository) GetPoll(ctx context.Context, pollID string) (entities.Poll, error) {
	var row pollModel
	err := r.db.WithContext(ctx).
		Where("id = ?", pollID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Poll{}, domainerrors.ErrPollNotFound
		}
		return entities.Poll{}, r.logError("poll_repo_get_failed", err, "poll_id", pollID)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListOpenPolls(
	ctx context.Context,
	chatID int64,
	targetID int64,
	kind entities.PollKind,
) ([]entities.Poll, error) {
	var rows []pollModel
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Where("target_id = ?", targetID).
		Where("kind = ?", string(kind)).
		Where("NOT ended").
		Order("created_at DESC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("poll_repo_list_open_failed", err,
			"chat_id", chatID,
			"target_id", targetID,
			"kind", string(kind),
		)
	}
	return toPollEntities(rows), nil
}

func (r *Repository) ListOpenPollsByChat(ctx context.Context, chatID int64) ([]entities.Poll, error) {
	var rows []pollModel
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Where("NOT ended").
		Order("created_at DESC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("poll_repo_list_open_by_chat_failed", err, "chat_id", chatID)
	}
	return toPollEntities(rows), nil
}

func (r *Repository) SetPollMessageID(ctx context.Context, pollID string, messageID int64) error {
	tx := r.db.WithContext(ctx).
		Model(&pollModel{}).
		Where("id = ?", pollID).
		Update("poll_message_id", messageID)
	if tx.Error != nil {
		return r.logError("poll_repo_set_message_failed", tx.Error, "poll_id", pollID)
	}
	if tx.RowsAffected == 0 {
		return domainerrors.ErrPollNotFound
	}
	return nil
}

// EndPoll performs the compare-and-set on the ended flag; only the caller that
// actually flipped it gets true back.
func (r *Repository) EndPoll(ctx context.Context, pollID string, endedAt time.Time) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&pollModel{}).
		Where("id = ?", pollID).
		Where("NOT ended").
		Updates(map[string]any{
			"ended":      true,
			"updated_at": endedAt.UTC(),
		})
	if tx.Error != nil {
		return false, r.logError("poll_repo_end_failed", tx.Error, "poll_id", pollID)
	}
	return tx.RowsAffected == 1, nil
}

func (r *Repository) DeletePoll(ctx context.Context, pollID string) error {
	if err := r.db.WithContext(ctx).
		Where("poll_id = ?", pollID).
		Delete(&voteModel{}).Error; err != nil {
		return r.logError("poll_repo_delete_votes_failed", err, "poll_id", pollID)
	}
	if err := r.db.WithContext(ctx).
		Where("id = ?", pollID).
		Delete(&pollModel{}).Error; err != nil {
		return r.logError("poll_repo_delete_failed", err, "poll_id", pollID)
	}
	return nil
}

func (r *Repository) CountRecentPolls(
	ctx context.Context,
	chatID int64,
	kind entities.PollKind,
	since time.Time,
) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&pollModel{}).
		Where("chat_id = ?", chatID).
		Where("kind = ?", string(kind)).
		Where("NOT forced").
		Where("created_at >= ?", since.UTC()).
		Count(&count).
		Error
	if err != nil {
		return 0, r.logError("poll_repo_count_recent_failed", err,
			"chat_id", chatID,
			"kind", string(kind),
		)
	}
	return int(count), nil
}

func (r *Repository) SaveVote(ctx context.Context, vote entities.Vote) error {
	row := voteModelFromEntity(vote)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"choice":     row.Choice,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("poll_repo_save_vote_failed", create.Error,
			"vote_id", vote.VoteID,
			"poll_id", vote.PollID,
			"voter_id", vote.VoterID,
		)
	}
	return nil
}

func (r *Repository) GetVoteByVoter(ctx context.Context, pollID string, voterID int64) (entities.Vote, bool, error) {
	var row voteModel
	err := r.db.WithContext(ctx).
		Where("poll_id = ?", pollID).
		Where("voter_id = ?", voterID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Vote{}, false, nil
		}
		return entities.Vote{}, false, r.logError("poll_repo_get_vote_failed", err,
			"poll_id", pollID,
			"voter_id", voterID,
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) CountVotesByChoice(ctx context.Context, pollID string) (map[entities.Choice]int, error) {
	var rows []struct {
		Choice string
		Count  int
	}
	err := r.db.WithContext(ctx).
		Model(&voteModel{}).
		Select("choice, COUNT(*) AS count").
		Where("poll_id = ?", pollID).
		Group("choice").
		Scan(&rows).
		Error
	if err != nil {
		return nil, r.logError("poll_repo_count_votes_failed", err, "poll_id", pollID)
	}
	counts := make(map[entities.Choice]int, len(rows))
	for _, row := range rows {
		counts[entities.Choice(row.Choice)] = row.Count
	}
	return counts, nil
}

func (r *Repository) ListVotersByChoice(
	ctx context.Context,
	pollID string,
	choice entities.Choice,
) ([]int64, error) {
	var voters []int64
	err := r.db.WithContext(ctx).
		Model(&voteModel{}).
		Where("poll_id = ?", pollID).
		Where("choice = ?", string(choice)).
		Order("cast_at ASC, id ASC").
		Pluck("voter_id", &voters).
		Error
	if err != nil {
		return nil, r.logError("poll_repo_list_voters_failed", err,
			"poll_id", pollID,
			"choice", string(choice),
		)
	}
	return voters, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, event ports.EventEnvelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    event.OccurredAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return r.logError("poll_repo_append_outbox_failed", err, "event_id", event.EventID)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("poll_repo_list_outbox_failed", err)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toMessage())
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	stamped := publishedAt.UTC()
	err := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": &stamped,
		}).Error
	if err != nil {
		return r.logError("poll_repo_mark_outbox_failed", err, "outbox_id", outboxID)
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "chat-moderation/poll-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("poll repository operation failed", fields...)
	return err
}

type pollModel struct {
	ID               string    `gorm:"column:id;primaryKey"`
	Kind             string    `gorm:"column:kind"`
	ChatID           int64     `gorm:"column:chat_id"`
	SourceID         int64     `gorm:"column:source_id"`
	TargetID         int64     `gorm:"column:target_id"`
	Ended            bool      `gorm:"column:ended"`
	Forced           bool      `gorm:"column:forced"`
	TriggerMessageID int64     `gorm:"column:trigger_message_id"`
	PollMessageID    *int64    `gorm:"column:poll_message_id"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (pollModel) TableName() string {
	return "polls"
}

func pollModelFromEntity(poll entities.Poll) pollModel {
	row := pollModel{
		ID:               poll.PollID,
		Kind:             string(poll.Kind),
		ChatID:           poll.ChatID,
		SourceID:         poll.SourceID,
		TargetID:         poll.TargetID,
		Ended:            poll.Ended,
		Forced:           poll.Forced,
		TriggerMessageID: poll.TriggerMessageID,
		CreatedAt:        poll.CreatedAt.UTC(),
		UpdatedAt:        poll.CreatedAt.UTC(),
	}
	if poll.PollMessageID != 0 {
		id := poll.PollMessageID
		row.PollMessageID = &id
	}
	return row
}

func (m pollModel) toEntity() entities.Poll {
	poll := entities.Poll{
		PollID:           m.ID,
		Kind:             entities.PollKind(m.Kind),
		ChatID:           m.ChatID,
		SourceID:         m.SourceID,
		TargetID:         m.TargetID,
		Ended:            m.Ended,
		Forced:           m.Forced,
		TriggerMessageID: m.TriggerMessageID,
		CreatedAt:        m.CreatedAt.UTC(),
	}
	if m.PollMessageID != nil {
		poll.PollMessageID = *m.PollMessageID
	}
	return poll
}

func toPollEntities(rows []pollModel) []entities.Poll {
	items := make([]entities.Poll, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

type voteModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	PollID    string    `gorm:"column:poll_id;uniqueIndex:idx_votes_poll_voter"`
	VoterID   int64     `gorm:"column:voter_id;uniqueIndex:idx_votes_poll_voter"`
	Choice    string    `gorm:"column:choice"`
	CastAt    time.Time `gorm:"column:cast_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (voteModel) TableName() string {
	return "votes"
}

func voteModelFromEntity(vote entities.Vote) voteModel {
	return voteModel{
		ID:        vote.VoteID,
		PollID:    vote.PollID,
		VoterID:   vote.VoterID,
		Choice:    string(vote.Choice),
		CastAt:    vote.CastAt.UTC(),
		UpdatedAt: vote.UpdatedAt.UTC(),
	}
}

func (m voteModel) toEntity() entities.Vote {
	return entities.Vote{
		VoteID:    m.ID,
		PollID:    m.PollID,
		VoterID:   m.VoterID,
		Choice:    entities.Choice(m.Choice),
		CastAt:    m.CastAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "poll_outbox"
}

func (m outboxModel) toMessage() ports.OutboxMessage {
	return ports.OutboxMessage{
		OutboxID:     m.OutboxID,
		EventType:    m.EventType,
		PartitionKey: m.PartitionKey,
		Payload:      m.Payload,
		Status:       m.Status,
		CreatedAt:    m.CreatedAt.UTC(),
		PublishedAt:  m.PublishedAt,
	}
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var (
	_ ports.PollRepository   = (*Repository)(nil)
	_ ports.VoteRepository   = (*Repository)(nil)
	_ ports.OutboxRepository = (*Repository)(nil)
)
