package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	dirmemory "bobbot/contexts/chat-moderation/member-directory/adapters/memory"
	pollmemory "bobbot/contexts/chat-moderation/poll-engine/adapters/memory"
	"bobbot/internal/app/bootstrap"
)

// Bot process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring (ports + adapters + use cases).
// 3) Pump transport updates through the dispatcher; serve the ops API.
func main() {
	_ = godotenv.Load()
	log.Println("bobbot starting")

	// The in-memory transport stands in until a real chat client is wired.
	updates := bootstrap.NewChannelUpdateSource(0)
	app, err := bootstrap.BuildBot(bootstrap.Transport{
		Chat:         pollmemory.NewGateway(),
		Participants: dirmemory.NewGateway(),
		Updates:      updates,
	})
	if err != nil {
		log.Fatalf("bootstrap bot failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("bot shutdown close failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Fatalf("bobbot stopped with error: %v", err)
	}
}
