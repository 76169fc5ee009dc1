// Command triage-server runs the notification prioritization service: an
// HTTP endpoint that classifies each submitted event as NOW, LATER, or
// NEVER.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"triage/internal/audit"
	"triage/internal/config"
	"triage/internal/dedup"
	"triage/internal/dispatch"
	"triage/internal/dnd"
	"triage/internal/enrich"
	"triage/internal/fatigue"
	"triage/internal/kv"
	"triage/internal/metrics"
	"triage/internal/pipeline"
	"triage/internal/rules"
	"triage/internal/server"
	"triage/pkg/clock"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML configuration")
	devLogging := flag.Bool("dev", false, "use human-readable development logging")
	flag.Parse()

	log, err := buildLogger(*devLogging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("configuration load failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() { _ = redisClient.Close() }()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// Degraded, not fatal: dedup fails open and fatigue reads as
		// UNKNOWN until Redis comes back.
		log.Warn("redis unreachable at startup, running degraded",
			zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	store := kv.NewRedis(redisClient)

	clk := clock.NewReal()

	ruleStore := rules.NewStore(cfg.RulesPath, log.Named("rules"))
	go ruleStore.Run(ctx)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	engine := pipeline.New(pipeline.Config{
		Detector: dedup.NewDetector(store, clk, log.Named("dedup")),
		Fatigue: fatigue.NewAccountant(store, fatigue.Caps{
			Total:     cfg.Fatigue.TotalPerHour,
			PerSource: cfg.Fatigue.PerSourcePerHour,
			Promo:     cfg.Fatigue.PromoPerFourHours,
		}, clk, log.Named("fatigue")),
		Rules:    ruleStore,
		Gate:     dnd.NewGate(cfg.DND.StartHour, cfg.DND.EndHour),
		AI:       enrich.NewClient(cfg.AI.Endpoint, clk, log.Named("ai")),
		Audit:    audit.NewLogSink(log.Named("audit")),
		Dispatch: dispatch.NewLogScheduler(log.Named("dispatch")),
		Clock:    clk,
		Logger:   log.Named("pipeline"),
		Metrics:  metrics.NewWithRegistry(registry),
	})

	srv := server.New(engine, log.Named("http"))
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Router(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownGrace)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	log.Info("triage-server listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("rules_path", cfg.RulesPath),
		zap.Bool("ai_mock", cfg.AI.Endpoint == ""),
	)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server failed", zap.Error(err))
	}
	log.Info("triage-server stopped")
}

func buildLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
