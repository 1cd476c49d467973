package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/modelmux/modelmux/cmd"
	"github.com/modelmux/modelmux/internal/analytics"
	"github.com/modelmux/modelmux/internal/config"
	"github.com/modelmux/modelmux/internal/discovery"
	"github.com/modelmux/modelmux/internal/dynamic"
	"github.com/modelmux/modelmux/internal/engine"
	"github.com/modelmux/modelmux/internal/platform/logger"
	"github.com/modelmux/modelmux/internal/platform/otel"
	"github.com/modelmux/modelmux/internal/registry"
	"github.com/modelmux/modelmux/internal/server"
	"github.com/modelmux/modelmux/internal/store/sqlite"

	// Import providers to trigger init() registration
	_ "github.com/modelmux/modelmux/internal/llm/anthropic"
	_ "github.com/modelmux/modelmux/internal/llm/google"
	_ "github.com/modelmux/modelmux/internal/llm/groq"
	_ "github.com/modelmux/modelmux/internal/llm/ollama"
	_ "github.com/modelmux/modelmux/internal/llm/openai"
)

func main() {
	logger.Initialize(logger.DefaultConfig())
	defer logger.Sync()
	log := logger.Get()

	cmd.CheckForUpdates()

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	shutdownTracer, err := otel.InitTracer("modelmux", log, os.Stdout)
	if err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	}

	// Dynamic model store. Redis when enabled, otherwise an in-process
	// store so registration still works within a single instance.
	var kv dynamic.KV
	if cfg.Redis.Enabled {
		redisKV := dynamic.NewRedisKV(cfg.Redis)
		if err := redisKV.Ping(context.Background()); err != nil {
			log.Warn("redis unreachable, dynamic models degraded", zap.Error(err))
		}
		defer redisKV.Close()
		kv = redisKV
	} else {
		kv = dynamic.NewMemoryKV()
	}

	store := registry.NewStore()
	adapter := dynamic.NewAdapter(kv, cfg.Models)
	if err := adapter.Refresh(context.Background(), store); err != nil {
		log.Warn("initial refresh served static models only", zap.Error(err))
	}
	log.Info("registry loaded", zap.Int("models", store.Len()))

	var refresher *dynamic.Refresher
	if cfg.Refresh.Enabled {
		refresher, err = dynamic.NewRefresher(adapter, store, cfg.Refresh.Interval)
		if err != nil {
			log.Fatal("invalid refresh interval", zap.Error(err))
		}
		refresher.Start()
		defer refresher.Stop()
	}

	repo, err := sqlite.NewSQLiteStorage(cfg.Storage.Path)
	if err != nil {
		log.Fatal("failed to open storage", zap.Error(err))
	}
	defer repo.Close()

	ingestor := analytics.NewIngestor(log, repo)
	ingestorCtx, stopIngestor := context.WithCancel(context.Background())
	ingestor.Start(ingestorCtx)
	defer func() {
		stopIngestor()
		ingestor.Stop()
	}()

	eng := engine.New(store,
		engine.WithMaxRetries(cfg.Engine.MaxRetries),
		engine.WithTimeout(time.Duration(cfg.Engine.TimeoutSeconds)*time.Second),
		engine.WithObserver(func(ev engine.AttemptEvent) {
			if ev.Err != nil {
				log.Warn("attempt failed",
					zap.String("model", ev.Model),
					zap.String("provider", ev.Provider),
					zap.Int("attempt", ev.Attempt),
					zap.Duration("duration", ev.Duration),
					zap.Error(ev.Err),
				)
			}
		}),
	)

	srv := server.New(cfg, log, server.Deps{
		Store:     store,
		Engine:    eng,
		Adapter:   adapter,
		Scanner:   discovery.NewScanner(),
		Ingestor:  ingestor,
		Analytics: analytics.NewService(repo),
		Version:   cmd.AppVersion,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting server", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Server.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	if shutdownTracer != nil {
		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Error("tracer shutdown failed", zap.Error(err))
		}
	}
}
