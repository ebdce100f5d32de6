package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/punchamoorthee/visaops/internal/api"
	"github.com/punchamoorthee/visaops/internal/blob"
	"github.com/punchamoorthee/visaops/internal/config"
	"github.com/punchamoorthee/visaops/internal/events"
	"github.com/punchamoorthee/visaops/internal/jobs"
	"github.com/punchamoorthee/visaops/internal/logging"
	"github.com/punchamoorthee/visaops/internal/service"
	"github.com/punchamoorthee/visaops/internal/store"
)

func main() {
	log := logging.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logging.SetLevel(cfg.LogLevel)

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		log.Fatalf("Invalid TIMEZONE %q: %v", cfg.TimeZone, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.NewStore(ctx, cfg.DBSource)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Unable to apply schema: %v", err)
	}

	// Initialize Layers
	hub := events.NewHub()
	var (
		publisher  events.Publisher  = hub
		subscriber events.Subscriber = hub
		revoker    service.Revoker   = service.NewMemoryRevoker()
		locker     jobs.Locker
	)
	if cfg.RedisAddress != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("Unable to connect to redis: %v", err)
		}
		defer rdb.Close()

		bus := events.NewRedisBus(rdb, hub)
		go bus.Run(ctx)
		publisher, subscriber = bus, bus
		revoker = service.NewRedisRevoker(rdb)
		locker = jobs.NewRedisLocker(redislock.New(rdb))
	} else if cfg.IsProduction() {
		log.Warn("REDIS_ADDRESS not set: events, logouts and audit locks stay local to this instance")
	}

	var blobs blob.Store = blob.Inline{}
	if cfg.GCSBucket != "" {
		gcs, err := blob.NewGCS(ctx, cfg.GCSBucket, cfg.GCSCredentialsJSON)
		if err != nil {
			log.Fatalf("Unable to open attachment bucket: %v", err)
		}
		defer gcs.Close()
		blobs = gcs
	}

	visas := service.NewVisaService(db, blobs, publisher, cfg.Routes, loc)
	refs := service.NewReferenceService(db)
	sessions := service.NewSessionService(db, revoker, cfg.JWTSecret, cfg.SessionTTL)
	handler := api.NewHandler(visas, refs, sessions, subscriber, db.Ping)

	audit := jobs.NewBudgetAudit(db, locker)
	cron, err := audit.Schedule(cfg.BudgetAuditSchedule, loc)
	if err != nil {
		log.Fatal(err)
	}
	defer cron.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
		// Event streams end with the signal context instead of holding Shutdown open.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Infof("Server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Graceful shutdown failed: %v", err)
	}
}
