package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"podnotes/pkg/archive"
	"podnotes/pkg/db"
	"podnotes/pkg/storage"
	"podnotes/pkg/taddy"
	"podnotes/pkg/transcriptservice"
	"podnotes/pkg/webfallback"
	"podnotes/pkg/worker"
)

func main() {
	var (
		lookbackHours = flag.Int("lookback", 48, "Candidate lookback window in hours")
		maxEpisodes   = flag.Int("max", 50, "Max candidate episodes per run")
		concurrency   = flag.Int("concurrency", 5, "Parallel transcript fetches")
		enabled       = flag.Bool("enabled", true, "Enable the worker (disabled runs return a zero summary)")
		advisoryLock  = flag.Bool("advisory-lock", true, "Guard the run with the cluster-wide advisory lock")
		webFallback   = flag.Bool("web-fallback", false, "Scrape episode pages when the provider has no transcript")
		ensureSchema  = flag.Bool("ensure-schema", false, "Create pipeline tables if missing before running")
		check         = flag.Bool("check", false, "Run the provider health check and exit")

		taddyKey  = flag.String("taddy-key", os.Getenv("TADDY_API_KEY"), "Taddy API key")
		taddyUser = flag.String("taddy-user", os.Getenv("TADDY_USER_ID"), "Taddy user/account ID")

		supabaseURL = flag.String("supabase-url", os.Getenv("SUPABASE_URL"), "Supabase project URL")
		supabaseKey = flag.String("supabase-key", os.Getenv("SUPABASE_KEY"), "Supabase service role key")
		pgDSN       = flag.String("pg-dsn", os.Getenv("DATABASE_URL"), "Postgres connection string (overrides URL+password derivation)")
		dbPassword  = flag.String("db-password", os.Getenv("SUPABASE_DB_PASSWORD"), "Supabase database password")
		bucket      = flag.String("bucket", "transcripts", "Storage bucket for transcript artifacts")

		mongoURI        = flag.String("mongo-uri", os.Getenv("MONGO_URI"), "MongoDB connection string for the raw fetch archive (empty disables archiving)")
		mongoDB         = flag.String("mongo-db", "podnotes", "MongoDB database name for the archive")
		mongoCollection = flag.String("mongo-collection", "transcript_fetches", "MongoDB collection for the archive")
	)
	flag.Parse()

	if *taddyKey == "" || *taddyUser == "" {
		log.Fatalf("Taddy credentials are required (-taddy-key / -taddy-user or TADDY_API_KEY / TADDY_USER_ID)")
	}

	ctx := context.Background()
	client := taddy.NewClient(*taddyKey, *taddyUser)

	if *check {
		runHealthCheck(ctx, client)
		return
	}

	sbClient := db.NewSupabaseClient(db.SupabaseConfig{
		ConnectionString: *pgDSN,
		SupabaseURL:      *supabaseURL,
		SupabaseKey:      *supabaseKey,
		Password:         *dbPassword,
	})
	if err := sbClient.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect to Supabase: %v", err)
	}
	defer sbClient.Close()

	if !sbClient.HasDirectDB() {
		log.Fatalf("A direct Postgres connection is required (-pg-dsn or -db-password)")
	}

	store := db.NewStore(sbClient)
	if *ensureSchema {
		if err := store.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to ensure schema: %v", err)
		}
	}

	service := transcriptservice.New(client)
	if *webFallback {
		service.SetWebFallback(webfallback.NewFinder())
	}

	uploader := storage.NewSupabaseUploader(sbClient.SDK(), *bucket)
	artifacts := storage.NewArtifactWriter(uploader)

	w := worker.New(worker.Config{
		LookbackHours:   *lookbackHours,
		MaxEpisodes:     *maxEpisodes,
		Concurrency:     *concurrency,
		Enabled:         *enabled,
		UseAdvisoryLock: *advisoryLock,
	}, store, service, artifacts)
	w.SetLocker(db.NewAdvisoryLock(sbClient))

	if *mongoURI != "" {
		archiveClient, err := archive.NewClient(*mongoURI, *mongoDB, *mongoCollection)
		if err != nil {
			log.Fatalf("Failed to create archive client: %v", err)
		}
		if err := archiveClient.Connect(ctx); err != nil {
			log.Fatalf("Failed to connect to archive: %v", err)
		}
		defer archiveClient.Close(ctx)
		w.SetArchiver(archiveClient)
	}

	start := time.Now()
	summary, err := w.Run(ctx)
	if err != nil {
		log.Fatalf("Transcript worker run failed: %v", err)
	}
	log.Printf("Done in %s: %d candidates, %d processed, %d succeeded, %d processing, %d errors",
		time.Since(start), summary.TotalCandidates, summary.Processed,
		summary.Succeeded, summary.Processing, summary.Errors)
}

func runHealthCheck(ctx context.Context, client *taddy.Client) {
	status, err := client.HealthCheck(ctx)
	if err != nil {
		log.Fatalf("Provider health check failed: %v", err)
	}
	log.Printf("Provider reachable: plan=%s on-demand usage %d/%d",
		status.Plan, status.OnDemandUsage, status.OnDemandLimit)
}
