package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/punchamoorthee/mockbank/internal/config"
	"github.com/punchamoorthee/mockbank/internal/seed"
	"github.com/punchamoorthee/mockbank/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	// The seeder only ever targets postgres, whatever STORE_DRIVER says.
	if cfg.DBSource == "" {
		log.Fatal("DB_SOURCE is required to seed the database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := store.NewPostgresStore(ctx, cfg.DBSource)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer st.Close()

	log.Println("--- Migrating schema ---")
	if err := st.Migrate(ctx); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("--- Seeding demo customers ---")
	res, err := seed.Demo(ctx, st, cfg.DefaultCurrency, time.Now().UTC())
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	if res.Users == 0 {
		log.Println("Demo customers already present. Skipping.")
		return
	}
	log.Printf("Seeded %d users, %d accounts, %d transactions. Password: %s",
		res.Users, res.Accounts, res.Transactions, seed.DemoPassword)
}
