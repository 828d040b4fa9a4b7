package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/tap2go/tap2go/internal/auth"
	"github.com/tap2go/tap2go/internal/db"
	"github.com/tap2go/tap2go/internal/logging"
	"github.com/tap2go/tap2go/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()
	email := flag.String("email", "", "Email of the account to promote to admin")
	dsn := flag.String("dsn", os.Getenv("DATABASE_URL"), "Postgres connection string")
	flag.Parse()

	if *email == "" || *dsn == "" {
		log.Fatalf("usage: go run ./cmd/adminutil/promote_admin -email user@example.com [-dsn postgres://...]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, *dsn)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer pool.Close()

	// Idempotent, so running against a fresh database is fine.
	if err := db.EnsureSchema(ctx, pool, logging.Nop()); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	store := postgres.New(pool)
	svc := auth.NewService(store, auth.NewLocalProvider(store), nil)
	id, err := svc.Promote(ctx, *email)
	if err != nil {
		log.Fatalf("failed to promote %s: %v", *email, err)
	}
	fmt.Printf("Account %s (%s) promoted to admin.\n", id, *email)
}
