package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"flatwatch/config"
	"flatwatch/flatfox"
	"flatwatch/httputil"
	"flatwatch/logging"
	"flatwatch/scheduler"
	"flatwatch/services"
	"flatwatch/storage"
	"flatwatch/telegram"
	"flatwatch/telegraph"
	"flatwatch/workers"
)

var (
	cycleNow = flag.Bool("cycle", false, "Run one notification cycle and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("flatwatch.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting flatwatch...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Source: %s (%s, region %s)", cfg.Source.Name, cfg.Source.BaseURL, cfg.Source.Region)

	ctx := context.Background()
	clients := httputil.NewClients()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	client := flatfox.NewClient(cfg.Source, clients.Listing)
	if err := client.Ping(ctx); err != nil {
		log.Printf("Warning: listing API probe failed: %v", err)
	}

	cache := services.NewBulkCache(client, cfg.CacheTTL, cfg.BulkFetchSize)
	alerts := services.NewAlertService(cache, store, cfg.Source.Region, cfg.RecentLimit)

	if cfg.Telegram.Token == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is required")
	}
	pages := telegraph.NewClient(clients.API, "flatwatch", "Flatwatch")
	sender, err := telegram.NewSender(cfg.Telegram.Token, pages)
	if err != nil {
		log.Fatalf("Failed to start Telegram sender: %v", err)
	}

	notifier := services.NewNotifier(alerts, store, sender)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.S3.Bucket != "" {
		uploader, err := storage.NewS3Uploader(ctx, storage.S3Settings{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			log.Fatalf("Failed to set up S3 uploader: %v", err)
		}
		mirror := workers.NewMediaWorker(clients.Media, uploader, 0)
		go mirror.Run(ctx)
		notifier.SetMirror(mirror)
	}

	sched := scheduler.New(cfg, notifier)

	if *cycleNow {
		log.Println("Running one notification cycle...")
		if err := sched.TriggerNow(ctx); err != nil {
			log.Fatalf("Cycle failed: %v", err)
		}
		log.Println("Cycle complete!")
		return
	}

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// The ticker only fires after a full interval; run the first cycle now
	// so a fresh deploy does not sit idle for an hour.
	go func() {
		if err := sched.TriggerNow(ctx); err != nil {
			log.Printf("Initial cycle error: %v", err)
		}
	}()

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

// openStore picks Postgres when DATABASE_URL is set, SQLite otherwise.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.PostgresURL != "" {
		store, err := storage.NewPostgresStore(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.PostgresURL))
		return store, nil
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	log.Printf("SQLite database: %s", cfg.DBPath)
	return store, nil
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
