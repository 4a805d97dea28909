package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/presence/internal/api"
	"github.com/your-org/presence/internal/api/ws"
	"github.com/your-org/presence/internal/config"
	"github.com/your-org/presence/internal/observability"
	"github.com/your-org/presence/internal/queue"
	"github.com/your-org/presence/internal/storage"
	"github.com/your-org/presence/internal/verify"
	"github.com/your-org/presence/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting presence api", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		slog.Error("apply migrations", "error", err)
		os.Exit(1)
	}

	// MinIO
	snapshots, err := storage.NewSnapshotStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect minio", "error", err)
		os.Exit(1)
	}
	if err := snapshots.EnsureBucket(ctx); err != nil {
		slog.Error("ensure bucket", "error", err)
		os.Exit(1)
	}

	// NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Error("ensure streams", "error", err)
		os.Exit(1)
	}

	// Vision
	extractor, err := vision.NewExtractor(cfg.Vision)
	if err != nil {
		slog.Error("init vision", "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	// Anonymous identity resolution
	var resolver verify.Resolver
	var rebuilder *verify.IndexResolver
	if cfg.Verify.UseANNIndex {
		idx := verify.NewIndexResolver(db)
		if err := idx.Rebuild(ctx); err != nil {
			slog.Error("build identity index", "error", err)
			os.Exit(1)
		}
		resolver = idx
		rebuilder = idx
	} else {
		resolver = verify.NewLinearResolver(db)
	}

	pipeline := verify.NewPipeline(
		verify.Config{
			MatchThreshold: cfg.Verify.MatchThreshold,
			MaxAccuracyM:   cfg.Verify.MaxAccuracyM,
			DefaultRadiusM: cfg.Verify.DefaultRadiusM,
			TZOffsetHours:  cfg.Verify.TZOffsetHours,
			ExtractTimeout: cfg.Vision.ExtractTimeout,
		},
		db, db, db,
		extractor,
		resolver,
		producer,
	)

	// WebSocket fan-out of recorded attempts
	hub := ws.NewHub()
	go hub.Run()

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect nats consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	err = consumer.ConsumeAttempts(ctx, "api-ws", func(ctx context.Context, msg jetstream.Msg) error {
		outcome := strings.TrimPrefix(msg.Subject(), queue.AttemptsSubjectBase+".")
		hub.BroadcastAttempt(outcome, json.RawMessage(msg.Data()))
		return nil
	})
	if err != nil {
		slog.Error("start attempt consumer", "error", err)
		os.Exit(1)
	}

	routerCfg := api.RouterConfig{
		APIKey:         cfg.Server.APIKey,
		JWTSecret:      cfg.Auth.JWTSecret,
		MatchThreshold: cfg.Verify.MatchThreshold,
		DB:             db,
		Snapshots:      snapshots,
		Producer:       producer,
		Hub:            hub,
		Pipeline:       pipeline,
		Extractor:      extractor,
	}
	if rebuilder != nil {
		routerCfg.Rebuilder = rebuilder
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(routerCfg),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server", "error", err)
			stop()
		}
	}()

	slog.Info("presence api ready", "addr", srv.Addr)

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown http server", "error", err)
	}
}
