package memory

import (
	"context"
	"sync"
	"time"

	"bobbot/contexts/chat-moderation/member-directory/domain/entities"
	domainerrors "bobbot/contexts/chat-moderation/member-directory/domain/errors"
	"bobbot/contexts/chat-moderation/member-directory/ports"
)

// Store is the in-memory identity mirror used by tests and the in-process
// runtime.
type Store struct {
	mu    sync.Mutex
	users map[int64]entities.User
	chats map[int64]entities.Chat

	now time.Time
}

func NewStore() *Store {
	return &Store{
		users: make(map[int64]entities.User),
		chats: make(map[int64]entities.Chat),
	}
}

// SetNow freezes the store clock for tests.
func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now.UTC()
}

func (s *Store) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now.IsZero() {
		s.now = time.Now().UTC()
	}
	s.now = s.now.Add(d)
}

func (s *Store) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now.IsZero() {
		return time.Now().UTC()
	}
	return s.now
}

func (s *Store) GetUser(_ context.Context, userID int64) (entities.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return entities.User{}, domainerrors.ErrUserNotFound
	}
	return user, nil
}

func (s *Store) SaveUser(_ context.Context, user entities.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.UserID] = user
	return nil
}

func (s *Store) GetChat(_ context.Context, chatID int64) (entities.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return entities.Chat{}, domainerrors.ErrChatNotFound
	}
	return chat, nil
}

func (s *Store) SaveChat(_ context.Context, chat entities.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats[chat.ChatID] = chat
	return nil
}

var (
	_ ports.IdentityRepository = (*Store)(nil)
	_ ports.Clock              = (*Store)(nil)
)

const defaultCacheCapacity = 64

type cacheKey struct {
	chatID int64
	userID int64
}

type cacheSlot struct {
	entry ports.CachedParticipant
	seq   uint64
}

// ParticipantCache is a bounded TTL cache. Expired entries fall out on
// read; at capacity the least recently inserted entry gets evicted.
type ParticipantCache struct {
	mu       sync.Mutex
	capacity int
	slots    map[cacheKey]cacheSlot
	seq      uint64
}

func NewParticipantCache(capacity int) *ParticipantCache {
	if capacity <= 0 {
		capacity = defaultCacheCapacity
	}
	return &ParticipantCache{
		capacity: capacity,
		slots:    make(map[cacheKey]cacheSlot, capacity),
	}
}

func (c *ParticipantCache) Get(chatID int64, userID int64, now time.Time) (ports.CachedParticipant, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot, ok := c.slots[cacheKey{chatID: chatID, userID: userID}]
	if !ok {
		return ports.CachedParticipant{}, false
	}
	if !now.Before(slot.entry.ExpiresAt) {
		delete(c.slots, cacheKey{chatID: chatID, userID: userID})
		return ports.CachedParticipant{}, false
	}
	return slot.entry, true
}

func (c *ParticipantCache) Put(chatID int64, userID int64, entry ports.CachedParticipant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey{chatID: chatID, userID: userID}
	if _, ok := c.slots[key]; !ok && len(c.slots) >= c.capacity {
		c.evictLocked()
	}
	c.seq++
	c.slots[key] = cacheSlot{entry: entry, seq: c.seq}
}

func (c *ParticipantCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

func (c *ParticipantCache) evictLocked() {
	for len(c.slots) >= c.capacity {
		var oldest cacheKey
		var oldestSeq uint64
		first := true
		for key, slot := range c.slots {
			if first || slot.seq < oldestSeq {
				oldest = key
				oldestSeq = slot.seq
				first = false
			}
		}
		delete(c.slots, oldest)
	}
}

var _ ports.ParticipantCache = (*ParticipantCache)(nil)
