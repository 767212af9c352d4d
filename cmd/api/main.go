package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"messageai/api/internal/app"
	"messageai/api/internal/config"
	"messageai/api/internal/detector"
	"messageai/api/internal/idempotency"
	"messageai/api/internal/notify"
	"messageai/api/internal/outbox"
	"messageai/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	// Idempotency claims live in Redis when configured, Postgres otherwise.
	var claims idempotency.Store
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for idempotency claims")
		redisStore, err := idempotency.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		claims = redisStore
	} else {
		log.Printf("Using PostgreSQL for idempotency claims")
		claims = idempotency.NewPostgresStore(db)
	}

	outboxRepo := outbox.NewPostgresRepo(db)

	var sender notify.Sender
	emailSender := notify.NewEmailSender(notify.EmailConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, resolveRecipientAddress)
	if emailSender.IsConfigured() {
		log.Printf("Delivering nudges over SMTP")
		sender = emailSender
	} else {
		log.Printf("SMTP not configured, nudges go to the process log")
		sender = notify.NewLogSender()
	}

	det := detector.New(dataStore, claims, outboxRepo)
	worker := outbox.NewWorker(outboxRepo, sender)
	service := app.NewService(det, outboxRepo, dataStore)

	stop := make(chan struct{})
	go runDetectionLoop(ctx, det, cfg.DetectionInterval, stop)
	go runOutboxLoop(ctx, worker, cfg.OutboxPollInterval, stop)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("MessageAI nudge API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	close(stop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// runDetectionLoop drives detection passes on the deployment interval. The
// pass itself carries no schedule state: overlapping or manual passes are
// safe because the claim store dedups.
func runDetectionLoop(ctx context.Context, det *detector.Detector, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			det.RunPass(ctx)
		case <-stop:
			return
		}
	}
}

// runOutboxLoop drains due outbox entries on a short poll.
func runOutboxLoop(ctx context.Context, worker *outbox.Worker, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := worker.ProcessDue(ctx); err != nil {
				log.Printf("outbox poll: %v", err)
			}
		case <-stop:
			return
		}
	}
}

// resolveRecipientAddress maps a recipient id to an email address. User ids
// in this deployment are the account email; anything else has no mailbox.
func resolveRecipientAddress(_ context.Context, recipientID string) (string, error) {
	if strings.Contains(recipientID, "@") {
		return recipientID, nil
	}
	return "", fmt.Errorf("no email address for recipient %s", recipientID)
}
