package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	memberdirectory "bobbot/contexts/chat-moderation/member-directory"
	dirmemory "bobbot/contexts/chat-moderation/member-directory/adapters/memory"
	dirpostgres "bobbot/contexts/chat-moderation/member-directory/adapters/postgres"
	dirports "bobbot/contexts/chat-moderation/member-directory/ports"
	pollengine "bobbot/contexts/chat-moderation/poll-engine"
	pollmemory "bobbot/contexts/chat-moderation/poll-engine/adapters/memory"
	pollpostgres "bobbot/contexts/chat-moderation/poll-engine/adapters/postgres"
	"bobbot/contexts/chat-moderation/poll-engine/ports"
	transportchat "bobbot/contexts/chat-moderation/poll-engine/transport/chat"
	"bobbot/internal/platform/config"
	"bobbot/internal/platform/db"
	"bobbot/internal/platform/httpserver"
	"bobbot/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

// Transport bundles the external chat collaborators. The real transport
// client plugs in here; local runs hand over the in-memory fakes.
type Transport struct {
	Chat         ports.ChatGateway
	Participants dirports.ParticipantGateway
	Updates      UpdateSource
}

// UpdateSource yields inbound chat updates for the bot loop.
type UpdateSource interface {
	Receive(ctx context.Context) (transportchat.Update, error)
}

type BotApp struct {
	server     *httpserver.Server
	dispatcher interface {
		Dispatch(ctx context.Context, update transportchat.Update) error
	}
	updates  UpdateSource
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	publisher    *messaging.KafkaPublisher
	relay        interface{ RunOnce(ctx context.Context) error }
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildBot(transport Transport) (*BotApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "bot")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}
	if transport.Chat == nil || transport.Participants == nil {
		return nil, errors.New("chat transport is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pollRepo := pollpostgres.NewRepository(pg.DB, logger)
	if err := pollRepo.Migrate(migrateCtx); err != nil {
		_ = pg.Close()
		return nil, err
	}
	dirRepo := dirpostgres.NewRepository(pg.DB, logger)
	if err := dirRepo.Migrate(migrateCtx); err != nil {
		_ = pg.Close()
		return nil, err
	}

	directory := memberdirectory.NewModule(memberdirectory.Dependencies{
		Repository:     dirRepo,
		Gateway:        transport.Participants,
		Cache:          dirmemory.NewParticipantCache(0),
		UserStaleness:  cfg.UserStaleness,
		ChatStaleness:  cfg.ChatStaleness,
		ParticipantTTL: cfg.ParticipantCacheTTL,
		Logger:         logger,
	})

	polls := pollengine.NewModule(pollengine.Dependencies{
		Polls:          pollRepo,
		Votes:          pollRepo,
		Outbox:         pollRepo,
		Gateway:        transport.Chat,
		Directory:      DirectoryAdapter{Service: directory.Service},
		Clock:          pollpostgres.SystemClock{},
		IDGen:          pollpostgres.UUIDGenerator{},
		BotID:          cfg.BotID,
		BotUsername:    cfg.BotUsername,
		Threshold:      cfg.PollThreshold,
		CreationLimit:  cfg.PollCreationLimit,
		CreationWindow: cfg.PollCreationWindow,
		OutboxTopic:    cfg.OutboxTopic,
		Logger:         logger,
	})

	return &BotApp{
		server:     httpserver.New(polls, logger, normalizeAddr(cfg.HTTPPort)),
		dispatcher: polls.Dispatcher,
		updates:    transport.Updates,
		postgres:   pg,
		logger:     logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	publisher := messaging.NewKafkaPublisher(cfg.KafkaBrokers, logger)
	repo := pollpostgres.NewRepository(pg.DB, logger)

	module := pollengine.NewModule(pollengine.Dependencies{
		Polls:     repo,
		Votes:     repo,
		Outbox:    repo,
		Gateway:   pollmemory.NewGateway(),
		Publisher: publisher,
		Clock:     pollpostgres.SystemClock{},
		IDGen:     pollpostgres.UUIDGenerator{},

		Threshold:   cfg.PollThreshold,
		OutboxTopic: cfg.OutboxTopic,
		Logger:      logger,
	})

	relay := module.Relay
	relay.BatchSize = cfg.OutboxBatchSize

	return &WorkerApp{
		postgres:     pg,
		publisher:    publisher,
		relay:        relay,
		pollInterval: cfg.RelayInterval,
		logger:       logger,
	}, nil
}

func (a *BotApp) Run(ctx context.Context) error {
	a.logger.Info("bot app started",
		"event", "bootstrap_bot_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.server.Start()
	}()

	if a.updates == nil {
		select {
		case <-ctx.Done():
			return nil
		case err := <-serverErr:
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-serverErr:
			return err
		default:
		}
		update, err := a.updates.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		// Dispatch logs its own failures; one bad update must not stop the
		// loop.
		_ = a.dispatcher.Dispatch(ctx, update)
	}
}

func (a *BotApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		// RunOnce logs its own failures and leaves unpublished rows pending,
		// so a broker blip just waits for the next tick.
		_ = w.relay.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	var errs []error
	if w.publisher != nil {
		errs = append(errs, w.publisher.Close())
	}
	if w.postgres != nil {
		errs = append(errs, w.postgres.Close())
	}
	return errors.Join(errs...)
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
