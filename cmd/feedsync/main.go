package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"podnotes/pkg/db"
	"podnotes/pkg/feedsync"
)

func main() {
	var (
		workers      = flag.Int("workers", 5, "Number of feeds parsed in parallel")
		ensureSchema = flag.Bool("ensure-schema", false, "Create pipeline tables if missing before running")
		pgDSN        = flag.String("pg-dsn", os.Getenv("DATABASE_URL"), "Postgres connection string")
	)
	flag.Parse()

	if *pgDSN == "" {
		log.Fatalf("A Postgres connection string is required (-pg-dsn or DATABASE_URL)")
	}

	ctx := context.Background()

	pgClient := db.NewPostgresClient(db.PostgresConfig{DSN: *pgDSN})
	if err := pgClient.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgClient.Close()

	store := db.NewStore(pgClient)
	if *ensureSchema {
		if err := store.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to ensure schema: %v", err)
		}
	}

	syncer := feedsync.New(store)
	syncer.SetWorkers(*workers)

	start := time.Now()
	summary, err := syncer.SyncAll(ctx)
	if err != nil {
		log.Fatalf("Feed sync failed: %v", err)
	}
	log.Printf("Done in %s: %d shows, %d episodes seen, %d inserted, %d errors",
		time.Since(start), summary.Shows, summary.Episodes, summary.Inserted, summary.Errors)
}
