package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"bobbot/contexts/chat-moderation/member-directory/adapters/memory"
	"bobbot/contexts/chat-moderation/member-directory/domain/entities"
	domainerrors "bobbot/contexts/chat-moderation/member-directory/domain/errors"
)

type directoryFixture struct {
	store   *memory.Store
	gateway *memory.Gateway
	cache   *memory.ParticipantCache
	service Service
}

func newDirectoryFixture(t *testing.T) *directoryFixture {
	t.Helper()
	store := memory.NewStore()
	store.SetNow(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	gateway := memory.NewGateway()
	cache := memory.NewParticipantCache(0)
	return &directoryFixture{
		store:   store,
		gateway: gateway,
		cache:   cache,
		service: Service{
			Repo:    store,
			Gateway: gateway,
			Cache:   cache,
			Clock:   store,
		},
	}
}

func TestGetUserFetchesAndMirrorsUnknownUser(t *testing.T) {
	f := newDirectoryFixture(t)
	f.gateway.SeedUser(entities.User{UserID: 10, Username: "alice"})

	user, err := f.service.GetUser(context.Background(), 10)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("got %+v", user)
	}
	if !user.LastUpdate.Equal(f.store.Now()) {
		t.Fatalf("refresh time not stamped: %v", user.LastUpdate)
	}

	// A second lookup inside the staleness budget serves the mirror.
	if _, err := f.service.GetUser(context.Background(), 10); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if n := f.gateway.UserFetchCount(10); n != 1 {
		t.Fatalf("expected 1 transport fetch, got %d", n)
	}
}

func TestGetUserRefreshesStaleMirror(t *testing.T) {
	f := newDirectoryFixture(t)
	f.gateway.SeedUser(entities.User{UserID: 10, Username: "alice"})
	if _, err := f.service.GetUser(context.Background(), 10); err != nil {
		t.Fatalf("get user: %v", err)
	}

	f.gateway.SeedUser(entities.User{UserID: 10, Username: "alice_renamed"})
	f.store.Advance(61 * time.Second)

	user, err := f.service.GetUser(context.Background(), 10)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if user.Username != "alice_renamed" {
		t.Fatalf("stale mirror served after the budget: %+v", user)
	}
	if n := f.gateway.UserFetchCount(10); n != 2 {
		t.Fatalf("expected 2 transport fetches, got %d", n)
	}
}

func TestGetUserServesStaleMirrorWhenRefreshFails(t *testing.T) {
	f := newDirectoryFixture(t)
	f.gateway.SeedUser(entities.User{UserID: 10, Username: "alice"})
	if _, err := f.service.GetUser(context.Background(), 10); err != nil {
		t.Fatalf("get user: %v", err)
	}

	f.store.Advance(61 * time.Second)
	f.gateway.FailFetch = true

	user, err := f.service.GetUser(context.Background(), 10)
	if err != nil {
		t.Fatalf("stale serve: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("got %+v", user)
	}
}

func TestGetUserUnknownAndUnreachable(t *testing.T) {
	f := newDirectoryFixture(t)
	if _, err := f.service.GetUser(context.Background(), 10); !errors.Is(err, domainerrors.ErrUserNotFound) {
		t.Fatalf("got %v, want ErrUserNotFound", err)
	}
	if _, err := f.service.GetUser(context.Background(), -5); !errors.Is(err, domainerrors.ErrInvalidUserID) {
		t.Fatalf("got %v, want ErrInvalidUserID", err)
	}
}

func TestGetChatRefreshesOnItsOwnBudget(t *testing.T) {
	f := newDirectoryFixture(t)
	f.gateway.SeedChat(entities.Chat{ChatID: -1, Title: "general"})
	if _, err := f.service.GetChat(context.Background(), -1); err != nil {
		t.Fatalf("get chat: %v", err)
	}

	// Past the user budget but inside the chat budget: still the mirror.
	f.store.Advance(90 * time.Second)
	if _, err := f.service.GetChat(context.Background(), -1); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if n := f.gateway.ChatFetchCount(-1); n != 1 {
		t.Fatalf("expected 1 transport fetch, got %d", n)
	}

	f.store.Advance(60 * time.Second)
	if _, err := f.service.GetChat(context.Background(), -1); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if n := f.gateway.ChatFetchCount(-1); n != 2 {
		t.Fatalf("expected 2 transport fetches, got %d", n)
	}
}

func TestGetChatRejectsNonGroupID(t *testing.T) {
	f := newDirectoryFixture(t)
	if _, err := f.service.GetChat(context.Background(), 5); !errors.Is(err, domainerrors.ErrInvalidChatID) {
		t.Fatalf("got %v, want ErrInvalidChatID", err)
	}
}

func TestGetParticipantCachesPresence(t *testing.T) {
	f := newDirectoryFixture(t)
	f.gateway.SeedParticipant(entities.Participant{ChatID: -1, UserID: 10, Role: entities.RoleMember})

	for i := 0; i < 3; i++ {
		present, err := f.service.IsParticipant(context.Background(), -1, 10)
		if err != nil {
			t.Fatalf("is participant: %v", err)
		}
		if !present {
			t.Fatalf("member should be present")
		}
	}
	if n := f.gateway.ParticipantFetchCount(-1, 10); n != 1 {
		t.Fatalf("expected 1 transport fetch, got %d", n)
	}
}

func TestGetParticipantCachesAbsence(t *testing.T) {
	f := newDirectoryFixture(t)

	for i := 0; i < 3; i++ {
		present, err := f.service.IsParticipant(context.Background(), -1, 10)
		if err != nil {
			t.Fatalf("is participant: %v", err)
		}
		if present {
			t.Fatalf("unknown user should be absent")
		}
	}
	if n := f.gateway.ParticipantFetchCount(-1, 10); n != 1 {
		t.Fatalf("absence should be cached, got %d fetches", n)
	}
}

func TestGetParticipantTTLExpiryRefetches(t *testing.T) {
	f := newDirectoryFixture(t)
	f.gateway.SeedParticipant(entities.Participant{ChatID: -1, UserID: 10, Role: entities.RoleMember})

	if _, err := f.service.IsParticipant(context.Background(), -1, 10); err != nil {
		t.Fatalf("is participant: %v", err)
	}
	f.gateway.RemoveParticipant(-1, 10)

	// Still cached as present inside the TTL.
	present, err := f.service.IsParticipant(context.Background(), -1, 10)
	if err != nil || !present {
		t.Fatalf("cached presence expected: present=%v err=%v", present, err)
	}

	f.store.Advance(3*time.Minute + time.Second)
	present, err = f.service.IsParticipant(context.Background(), -1, 10)
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if present {
		t.Fatalf("expired entry should have been refetched")
	}
	if n := f.gateway.ParticipantFetchCount(-1, 10); n != 2 {
		t.Fatalf("expected 2 transport fetches, got %d", n)
	}
}

func TestIsAdminRoleLogic(t *testing.T) {
	f := newDirectoryFixture(t)
	f.gateway.SeedParticipant(entities.Participant{ChatID: -1, UserID: 10, Role: entities.RoleMember})
	f.gateway.SeedParticipant(entities.Participant{ChatID: -1, UserID: 11, Role: entities.RoleAdmin})
	f.gateway.SeedParticipant(entities.Participant{ChatID: -1, UserID: 12, Role: entities.RoleCreator})

	cases := []struct {
		userID int64
		want   bool
	}{
		{10, false},
		{11, true},
		{12, true},
		{13, false}, // not in the chat at all
	}
	for _, tc := range cases {
		got, err := f.service.IsAdmin(context.Background(), -1, tc.userID)
		if err != nil {
			t.Fatalf("is admin %d: %v", tc.userID, err)
		}
		if got != tc.want {
			t.Fatalf("is admin %d = %v, want %v", tc.userID, got, tc.want)
		}
	}
}
