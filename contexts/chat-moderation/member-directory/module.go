package memberdirectory

import (
	"log/slog"
	"time"

	"bobbot/contexts/chat-moderation/member-directory/adapters/memory"
	"bobbot/contexts/chat-moderation/member-directory/application"
	"bobbot/contexts/chat-moderation/member-directory/ports"
)

type Module struct {
	Service application.Service

	// Set by NewInMemoryModule for tests and local runs.
	Store   *memory.Store
	Gateway *memory.Gateway
}

type Dependencies struct {
	Repository ports.IdentityRepository
	Gateway    ports.ParticipantGateway
	Cache      ports.ParticipantCache
	Clock      ports.Clock

	UserStaleness  time.Duration
	ChatStaleness  time.Duration
	ParticipantTTL time.Duration

	Logger *slog.Logger
}

func NewModule(deps Dependencies) Module {
	cache := deps.Cache
	if cache == nil {
		cache = memory.NewParticipantCache(0)
	}
	return Module{
		Service: application.Service{
			Repo:           deps.Repository,
			Gateway:        deps.Gateway,
			Cache:          cache,
			Clock:          deps.Clock,
			UserStaleness:  deps.UserStaleness,
			ChatStaleness:  deps.ChatStaleness,
			ParticipantTTL: deps.ParticipantTTL,
			Logger:         deps.Logger,
		},
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	gateway := memory.NewGateway()
	module := NewModule(Dependencies{
		Repository: store,
		Gateway:    gateway,
		Clock:      store,
		Logger:     logger,
	})
	module.Store = store
	module.Gateway = gateway
	return module
}
