package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"staffattend/internal/attendance"
	"staffattend/internal/config"
	"staffattend/internal/queue"
	"staffattend/internal/store"
)

// Worker drains attendance events from the Redis queue into the audit table.
func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend != "redis" {
		log.Fatalf("worker needs QUEUE_BACKEND=redis, got %q", cfg.QueueBackend)
	}

	dsn := cfg.AuditDatabaseURL
	if dsn == "" {
		dsn = cfg.DatabaseURL
	}
	db, err := store.NewPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	repo := attendance.NewRepository(db.Client)
	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("migrate failed: %v", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	q := queue.NewRedisQueue(redisClient.Client, "")

	go serveMetrics(cfg.WorkerMetricsPort)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}
	log.Println("worker started, waiting for events...")
	attendance.Drain(ctx, messages, repo)
	log.Println("worker stopped")
}

func serveMetrics(port string) {
	if port == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("metrics server error: %v", err)
	}
}
