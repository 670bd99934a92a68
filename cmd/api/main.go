package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"crmflow/auth"
	"crmflow/client"
	"crmflow/collaborator"
	"crmflow/contract"
	"crmflow/db"
	"crmflow/event"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	ctx := context.Background()

	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	tokens, err := auth.NewTokenService(auth.TokenConfigFromEnv())
	if err != nil {
		log.Fatalf("bootstrap token service: %v", err)
	}
	for _, w := range tokens.Warnings() {
		log.Printf("config warning: %s", w)
	}

	authService := auth.NewService(auth.NewRepository(pool), tokens)
	collaboratorService := collaborator.NewService(pool, collaborator.NewRepository(pool))
	clientService := client.NewService(pool, client.NewRepository(pool))
	contractService := contract.NewService(pool, contract.NewRepository(pool))
	eventService := event.NewService(pool, event.NewRepository(pool))

	log.Printf("crmflow services ready: auth=%t collaborators=%t clients=%t contracts=%t events=%t",
		authService != nil, collaboratorService != nil, clientService != nil, contractService != nil, eventService != nil)
}
