package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"bobbot/contexts/chat-moderation/member-directory/domain/entities"
	domainerrors "bobbot/contexts/chat-moderation/member-directory/domain/errors"
	"bobbot/contexts/chat-moderation/member-directory/ports"
)

func TestStoreUserRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	if _, err := store.GetUser(ctx, 10); !errors.Is(err, domainerrors.ErrUserNotFound) {
		t.Fatalf("got %v, want ErrUserNotFound", err)
	}

	user := entities.User{UserID: 10, Username: "alice", FirstName: "Alice"}
	if err := store.SaveUser(ctx, user); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.GetUser(ctx, 10)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != user {
		t.Fatalf("got %+v", got)
	}
}

func TestStoreChatRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	if _, err := store.GetChat(ctx, -1); !errors.Is(err, domainerrors.ErrChatNotFound) {
		t.Fatalf("got %v, want ErrChatNotFound", err)
	}

	chat := entities.Chat{ChatID: -1, Title: "general"}
	if err := store.SaveChat(ctx, chat); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.GetChat(ctx, -1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != chat {
		t.Fatalf("got %+v", got)
	}
}

func TestParticipantCacheExpiresOnRead(t *testing.T) {
	cache := NewParticipantCache(0)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cache.Put(-1, 10, ports.CachedParticipant{
		Participant: entities.Participant{ChatID: -1, UserID: 10, Role: entities.RoleMember},
		Present:     true,
		ExpiresAt:   base.Add(3 * time.Minute),
	})

	entry, ok := cache.Get(-1, 10, base.Add(time.Minute))
	if !ok || !entry.Present {
		t.Fatalf("entry should still be live: ok=%v entry=%+v", ok, entry)
	}

	if _, ok := cache.Get(-1, 10, base.Add(3*time.Minute)); ok {
		t.Fatalf("entry at its deadline should be expired")
	}
	if cache.Len() != 0 {
		t.Fatalf("expired entry should be dropped, len=%d", cache.Len())
	}
}

func TestParticipantCacheEvictsOldestAtCapacity(t *testing.T) {
	cache := NewParticipantCache(3)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := base.Add(3 * time.Minute)

	for i := int64(1); i <= 3; i++ {
		cache.Put(-1, i, ports.CachedParticipant{Present: true, ExpiresAt: expires})
	}
	cache.Put(-1, 4, ports.CachedParticipant{Present: true, ExpiresAt: expires})

	if cache.Len() != 3 {
		t.Fatalf("len %d, want 3", cache.Len())
	}
	if _, ok := cache.Get(-1, 1, base); ok {
		t.Fatalf("oldest entry should be evicted")
	}
	for i := int64(2); i <= 4; i++ {
		if _, ok := cache.Get(-1, i, base); !ok {
			t.Fatalf("entry %d should survive", i)
		}
	}
}

func TestParticipantCacheRewriteDoesNotEvict(t *testing.T) {
	cache := NewParticipantCache(2)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := base.Add(3 * time.Minute)

	cache.Put(-1, 1, ports.CachedParticipant{Present: true, ExpiresAt: expires})
	cache.Put(-1, 2, ports.CachedParticipant{Present: true, ExpiresAt: expires})
	// Updating a resident key at capacity must not push anything out.
	cache.Put(-1, 1, ports.CachedParticipant{Present: false, ExpiresAt: expires})

	if cache.Len() != 2 {
		t.Fatalf("len %d, want 2", cache.Len())
	}
	entry, ok := cache.Get(-1, 1, base)
	if !ok || entry.Present {
		t.Fatalf("rewrite lost: ok=%v entry=%+v", ok, entry)
	}
	if _, ok := cache.Get(-1, 2, base); !ok {
		t.Fatalf("resident entry should survive a rewrite")
	}
}

func TestParticipantCacheDefaultCapacity(t *testing.T) {
	cache := NewParticipantCache(0)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := base.Add(3 * time.Minute)

	for i := int64(1); i <= 70; i++ {
		cache.Put(-1, i, ports.CachedParticipant{Present: true, ExpiresAt: expires})
	}
	if cache.Len() != 64 {
		t.Fatalf("len %d, want the default capacity of 64", cache.Len())
	}
}
