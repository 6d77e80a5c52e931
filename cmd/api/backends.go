package main

import (
	"context"
	"fmt"
	"log"

	"staffattend/internal/attendance"
	"staffattend/internal/config"
	"staffattend/internal/queue"
	"staffattend/internal/store"
	"staffattend/internal/table"
)

// backends are the storage and messaging clients selected by config.
type backends struct {
	source  table.Source
	db      *store.DB
	redis   *store.Redis
	queue   queue.Queue
	auditDB *store.DB
	audit   *attendance.Repository
}

func needsRedis(cfg config.App) bool {
	return cfg.DataBackend == "redis" || cfg.SessionBackend == "redis" || cfg.QueueBackend == "redis"
}

func openBackends(ctx context.Context, cfg config.App) (*backends, error) {
	b := &backends{}
	if needsRedis(cfg) {
		b.redis = store.NewRedis(cfg.RedisAddr)
		if !b.redis.Healthy(ctx) {
			log.Printf("warning: redis at %s not reachable yet", cfg.RedisAddr)
		}
	}

	var err error
	switch cfg.DataBackend {
	case "csv":
		b.source, err = table.NewCSVDir(cfg.DataDir)
	case "memory":
		b.source = table.NewMemory()
	case "redis":
		b.source = table.NewRedisSource(b.redis.Client, "")
	case "postgres":
		if b.db, err = store.NewPostgres(ctx, cfg.DatabaseURL); err == nil {
			b.source, err = table.NewSQLSource(ctx, b.db.Client, table.Postgres)
		}
	case "sqlite":
		if b.db, err = store.NewSQLite(ctx, cfg.SQLitePath); err == nil {
			b.source, err = table.NewSQLSource(ctx, b.db.Client, table.SQLite)
		}
	default:
		err = fmt.Errorf("unknown DATA_BACKEND %q", cfg.DataBackend)
	}
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("open %s storage: %w", cfg.DataBackend, err)
	}

	switch cfg.QueueBackend {
	case "memory":
		b.queue = queue.NewInMemory(256)
	case "redis":
		b.queue = queue.NewRedisQueue(b.redis.Client, "")
	}

	if err := b.openAudit(ctx, cfg); err != nil {
		log.Printf("warning: audit log disabled: %v", err)
	}
	return b, nil
}

// openAudit connects the audit repository. It reuses the data database when
// that is Postgres and no separate audit URL is set.
func (b *backends) openAudit(ctx context.Context, cfg config.App) error {
	switch {
	case cfg.AuditDatabaseURL != "":
		db, err := store.NewPostgres(ctx, cfg.AuditDatabaseURL)
		if err != nil {
			return err
		}
		b.auditDB = db
	case cfg.DataBackend == "postgres":
		b.auditDB = b.db
	default:
		return nil
	}
	repo := attendance.NewRepository(b.auditDB.Client)
	if err := repo.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate audit events: %w", err)
	}
	b.audit = repo
	return nil
}

// Close releases every open client.
func (b *backends) Close() {
	if b.auditDB != nil && b.auditDB != b.db {
		_ = b.auditDB.Close()
	}
	if b.db != nil {
		_ = b.db.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
}
