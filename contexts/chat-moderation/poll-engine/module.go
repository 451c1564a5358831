package pollengine

import (
	"log/slog"
	"time"

	chatadapter "bobbot/contexts/chat-moderation/poll-engine/adapters/chat"
	httpadapter "bobbot/contexts/chat-moderation/poll-engine/adapters/http"
	"bobbot/contexts/chat-moderation/poll-engine/adapters/memory"
	"bobbot/contexts/chat-moderation/poll-engine/application/commands"
	"bobbot/contexts/chat-moderation/poll-engine/application/enforcement"
	"bobbot/contexts/chat-moderation/poll-engine/application/queries"
	"bobbot/contexts/chat-moderation/poll-engine/application/workers"
	"bobbot/contexts/chat-moderation/poll-engine/ports"
)

type Module struct {
	Polls      commands.PollUseCase
	Votes      commands.VoteUseCase
	Stats      queries.StatsUseCase
	Handler    chatadapter.Handler
	Dispatcher *chatadapter.Dispatcher
	OpsHandler httpadapter.Handler
	Relay      workers.OutboxRelay

	// Set by NewInMemoryModule for tests and local runs.
	Store   *memory.Store
	Gateway *memory.Gateway
}

type Dependencies struct {
	Polls     ports.PollRepository
	Votes     ports.VoteRepository
	Outbox    ports.OutboxRepository
	Gateway   ports.ChatGateway
	Directory chatadapter.MemberDirectory
	Publisher ports.EventPublisher
	Clock     ports.Clock
	IDGen     ports.IDGenerator

	BotID       int64
	BotUsername string

	Threshold      int
	CreationLimit  int
	CreationWindow time.Duration
	MessageWait    time.Duration

	OutboxTopic string

	Logger *slog.Logger
}

func NewModule(deps Dependencies) Module {
	executor := enforcement.Executor{
		Gateway: deps.Gateway,
		Logger:  deps.Logger,
	}
	polls := commands.PollUseCase{
		Polls:          deps.Polls,
		Votes:          deps.Votes,
		Clock:          deps.Clock,
		IDGen:          deps.IDGen,
		Threshold:      deps.Threshold,
		CreationLimit:  deps.CreationLimit,
		CreationWindow: deps.CreationWindow,
		Logger:         deps.Logger,
	}
	votes := commands.VoteUseCase{
		Polls:     deps.Polls,
		Votes:     deps.Votes,
		Outbox:    deps.Outbox,
		Enforcer:  executor,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Threshold: deps.Threshold,
		Logger:    deps.Logger,
	}
	stats := queries.StatsUseCase{
		Polls:     deps.Polls,
		Votes:     deps.Votes,
		Threshold: deps.Threshold,
	}
	handler := chatadapter.Handler{
		Polls:       polls,
		Votes:       votes,
		Stats:       stats,
		Gateway:     deps.Gateway,
		Directory:   deps.Directory,
		BotID:       deps.BotID,
		BotUsername: deps.BotUsername,
		Threshold:   deps.Threshold,
		MessageWait: deps.MessageWait,
		Logger:      deps.Logger,
	}
	return Module{
		Polls:      polls,
		Votes:      votes,
		Stats:      stats,
		Handler:    handler,
		Dispatcher: chatadapter.NewDispatcher(handler, deps.Logger),
		OpsHandler: httpadapter.Handler{
			Stats:  stats,
			Logger: deps.Logger,
		},
		Relay: workers.OutboxRelay{
			Outbox:    deps.Outbox,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			Topic:     deps.OutboxTopic,
			Logger:    deps.Logger,
		},
	}
}

// NewInMemoryModule wires the module entirely against the in-memory adapters.
func NewInMemoryModule(directory chatadapter.MemberDirectory, logger *slog.Logger) Module {
	store := memory.NewStore()
	gateway := memory.NewGateway()
	module := NewModule(Dependencies{
		Polls:     store,
		Votes:     store,
		Outbox:    store,
		Gateway:   gateway,
		Directory: directory,
		Clock:     store,
		IDGen:     store,
		Logger:    logger,
	})
	module.Store = store
	module.Gateway = gateway
	return module
}
