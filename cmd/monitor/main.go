package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/joho/godotenv"

	"dryer-fleet/monitor/internal/alerts"
	"dryer-fleet/monitor/internal/auth"
	"dryer-fleet/monitor/internal/config"
	"dryer-fleet/monitor/internal/domain"
	"dryer-fleet/monitor/internal/pipeline"
	"dryer-fleet/monitor/internal/store"
	transporthttp "dryer-fleet/monitor/internal/transport/http"
	"dryer-fleet/monitor/internal/transport/ws"
	"dryer-fleet/monitor/internal/validation"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewTimescaleStore(ctx, cfg)
	if err != nil {
		log.Fatalf("timescale store: %v", err)
	}
	defer db.Close()

	redis, err := store.NewRedisStore(ctx, cfg)
	if err != nil {
		log.Fatalf("redis store: %v", err)
	}
	defer redis.Close()

	validator := validation.NewValidator(validation.DefaultRanges())
	rules := domain.Catalog(cfg.Thresholds())

	hub := ws.NewHub()
	go hub.Run(ctx)

	reconciler := alerts.NewReconciler(db, rules, redis, hub)
	orchestrator := alerts.NewOrchestrator(
		db,
		reconciler,
		cfg.SweepWorkers,
		time.Duration(cfg.SweepTimeoutSec)*time.Second,
		time.Duration(cfg.StaleAfterMinutes)*time.Minute,
		time.Duration(cfg.HotWindowMinutes)*time.Minute,
		cfg.CriticalTemperatureC,
	)
	go orchestrator.RunScheduled(ctx,
		time.Duration(cfg.FullSweepIntervalSec)*time.Second,
		time.Duration(cfg.StaleSweepIntervalSec)*time.Second,
		time.Duration(cfg.HotSweepIntervalSec)*time.Second,
	)

	dispatcher := pipeline.NewDispatcher(cfg.StateChannelSize, cfg.AlertChannelSize, cfg.AuditChannelSize)
	for i := 0; i < cfg.StateWriterWorkers; i++ {
		go pipeline.NewStateWriter(dispatcher.StateChan, redis).Run(ctx)
	}
	for i := 0; i < cfg.AlertWorkers; i++ {
		go pipeline.NewAlertEvaluator(dispatcher.AlertChan, reconciler).Run(ctx)
	}
	go pipeline.NewAuditWriter(dispatcher.AuditChan, db, cfg.AuditBatchSize, cfg.AuditFlushIntervalMS).Run(ctx)

	authenticator := auth.NewAuthenticator(cfg, redis)
	handler := transporthttp.NewHandler(db, validator, dispatcher)
	router := transporthttp.NewRouter(
		handler,
		transporthttp.NewAuthMiddleware(authenticator),
		orchestrator,
		cfg.CronSecret,
		ws.ServeWS(hub),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handlers.CombinedLoggingHandler(os.Stdout, router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("dryer fleet monitor listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}
