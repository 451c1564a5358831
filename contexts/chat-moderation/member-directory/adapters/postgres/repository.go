package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bobbot/contexts/chat-moderation/member-directory/domain/entities"
	domainerrors "bobbot/contexts/chat-moderation/member-directory/domain/errors"
	"bobbot/contexts/chat-moderation/member-directory/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
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

func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&userModel{}, &chatModel{})
}

func (r *Repository) GetUser(ctx context.Context, userID int64) (entities.User, error) {
	var row userModel
	err := r.db.WithContext(ctx).
		Where("id = ?", userID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.User{}, domainerrors.ErrUserNotFound
		}
		return entities.User{}, r.logError("member_repo_get_user_failed", err, "user_id", userID)
	}
	return row.toEntity(), nil
}

func (r *Repository) SaveUser(ctx context.Context, user entities.User) error {
	row := userModelFromEntity(user)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return r.logError("member_repo_save_user_failed", err, "user_id", user.UserID)
	}
	return nil
}

func (r *Repository) GetChat(ctx context.Context, chatID int64) (entities.Chat, error) {
	var row chatModel
	err := r.db.WithContext(ctx).
		Where("id = ?", chatID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Chat{}, domainerrors.ErrChatNotFound
		}
		return entities.Chat{}, r.logError("member_repo_get_chat_failed", err, "chat_id", chatID)
	}
	return row.toEntity(), nil
}

func (r *Repository) SaveChat(ctx context.Context, chat entities.Chat) error {
	row := chatModelFromEntity(chat)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return r.logError("member_repo_save_chat_failed", err, "chat_id", chat.ChatID)
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "chat-moderation/member-directory",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("member directory repository operation failed", fields...)
	return err
}

type userModel struct {
	ID         int64     `gorm:"column:id;primaryKey"`
	Username   string    `gorm:"column:username"`
	FirstName  string    `gorm:"column:first_name"`
	LastName   string    `gorm:"column:last_name"`
	LastUpdate time.Time `gorm:"column:last_update"`
}

func (userModel) TableName() string {
	return "directory_users"
}

func userModelFromEntity(user entities.User) userModel {
	return userModel{
		ID:         user.UserID,
		Username:   user.Username,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		LastUpdate: user.LastUpdate.UTC(),
	}
}

func (m userModel) toEntity() entities.User {
	return entities.User{
		UserID:     m.ID,
		Username:   m.Username,
		FirstName:  m.FirstName,
		LastName:   m.LastName,
		LastUpdate: m.LastUpdate.UTC(),
	}
}

type chatModel struct {
	ID         int64     `gorm:"column:id;primaryKey"`
	Link       string    `gorm:"column:link"`
	Title      string    `gorm:"column:title"`
	LastUpdate time.Time `gorm:"column:last_update"`
}

func (chatModel) TableName() string {
	return "directory_chats"
}

func chatModelFromEntity(chat entities.Chat) chatModel {
	return chatModel{
		ID:         chat.ChatID,
		Link:       chat.Link,
		Title:      chat.Title,
		LastUpdate: chat.LastUpdate.UTC(),
	}
}

func (m chatModel) toEntity() entities.Chat {
	return entities.Chat{
		ChatID:     m.ID,
		Link:       m.Link,
		Title:      m.Title,
		LastUpdate: m.LastUpdate.UTC(),
	}
}

var _ ports.IdentityRepository = (*Repository)(nil)
