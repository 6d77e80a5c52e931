package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"staffattend/internal/attendance"
	"staffattend/internal/cloudinary"
	"staffattend/internal/config"
	"staffattend/internal/dailytoken"
	"staffattend/internal/directory"
	"staffattend/internal/handler"
	"staffattend/internal/httpmiddleware"
	"staffattend/internal/metrics"
	"staffattend/internal/session"
	"staffattend/internal/settings"
)

// loginPerMinute bounds login attempts per client address.
const loginPerMinute = 10

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	scheme, err := directory.SchemeByName(cfg.PasswordScheme)
	if err != nil {
		return err
	}
	policy, err := attendance.ParsePolicy(cfg.DispatchPolicy)
	if err != nil {
		return err
	}

	dir := directory.New(deps.source.Table("users"), scheme)
	created, err := dir.Bootstrap(ctx, cfg.BootstrapAdminUser, cfg.BootstrapAdminPass)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		log.Printf("created bootstrap admin %q", cfg.BootstrapAdminUser)
	}

	school := settings.New(deps.source.Table("config"), deps.source.Table("geofence"), settings.Default(cfg.DefaultRadiusMeters))
	tokens := dailytoken.New(cfg.Location())
	ledger := attendance.NewLedger(deps.source.Table("attendance"))

	opts := attendance.Options{Policy: policy}
	if deps.queue != nil {
		opts.Events = deps.queue
	}
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		opts.Evidence = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Println("cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("cloudinary not configured, scan captures are not kept")
	}
	svc := attendance.NewService(ledger, school, tokens, opts)

	var registry session.Registry = session.NewMemory(cfg.SessionTTL)
	if cfg.SessionBackend == "redis" {
		registry = session.NewRedis(deps.redis.Client, "staffattend:session", cfg.SessionTTL)
	}

	// A memory queue has no external worker, so drain it in process.
	if cfg.QueueBackend == "memory" {
		msgs, err := deps.queue.Consume(ctx)
		if err != nil {
			return err
		}
		var sink attendance.EventSink
		if deps.audit != nil {
			sink = deps.audit
		}
		go attendance.Drain(ctx, msgs, sink)
	}

	health := map[string]handler.HealthCheck{
		"storage": func(ctx context.Context) bool {
			_, err := school.Get(ctx)
			return err == nil
		},
	}
	if deps.redis != nil {
		health["redis"] = deps.redis.Healthy
	}
	if deps.auditDB != nil {
		health["audit_db"] = deps.auditDB.Healthy
	}

	h := handler.New(handler.Deps{
		Gate:          session.NewGate(dir, registry),
		Directory:     dir,
		Settings:      school,
		Tokens:        tokens,
		Attendance:    svc,
		Audit:         deps.audit,
		JWTIssuer:     cfg.JWTIssuer,
		JWTSigningKey: cfg.JWTSigningKey,
		AccessTTL:     cfg.AccessTTL,
		LoginLimit:    httpmiddleware.NewLimiter(loginPerMinute, loginPerMinute).Middleware(nil),
		Health:        health,
	})

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Production(),
		SameSite: http.SameSiteLaxMode,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.CORS())
	r.Use(httpmiddleware.NewLimiter(cfg.RateLimitPerMin, cfg.RateLimitPerMin).Middleware(nil))
	r.Use(metrics.GinMiddleware())
	r.Use(sessions.Sessions("staffattend", store))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("starting server on :%s (data=%s, sessions=%s, queue=%s, policy=%s)",
			cfg.HTTPPort, cfg.DataBackend, cfg.SessionBackend, cfg.QueueBackend, policy)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced shutdown: %v", err)
	}
	log.Println("server exited")
	return nil
}
