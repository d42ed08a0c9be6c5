package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"swarmguard/internal/api"
	"swarmguard/internal/cli"
	"swarmguard/internal/engine"
	"swarmguard/internal/guard"
	"swarmguard/internal/history"
	"swarmguard/internal/logging"
	"swarmguard/internal/mongoq"
	"swarmguard/internal/policy"
	"swarmguard/internal/redisq"
	"swarmguard/internal/telemetry"
	"swarmguard/internal/ui/live"
)

const shutdownTimeout = 5 * time.Second

// main launches swarmguardd.
func main() {
	os.Exit(run())
}

// run executes swarmguardd and returns an exit code.
func run() int {
	configPath := flag.String("config", "swarmguardd.yaml", "path to swarmguardd config")
	uiMode := flag.String("ui", "", "UI mode override (auto|live|plain)")
	verbose := flag.Bool("verbose", false, "log to the terminal instead of the live UI")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}
	if *uiMode != "" {
		cfg.UI = *uiMode
	}
	decision, err := cli.ResolveUIMode(cfg.UI, *verbose, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}
	if decision.Warning != "" {
		fmt.Fprintln(os.Stderr, decision.Warning)
	}

	logCfg := logging.Config{Level: cfg.Log.Level, Output: cfg.Log.Output, Development: cfg.Log.Development}
	if decision.UseLive && (logCfg.Output == "stderr" || logCfg.Output == "stdout") {
		logCfg.Output = "nop"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging error: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	policyPath, err := cli.ResolvePolicyPath(cfg.Policy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "policy error: %v\n", err)
		return 1
	}
	doc, err := policy.Load(policyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "policy error:\n%v\n", err)
		return 1
	}
	settings, err := policy.Resolve(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "policy error:\n%v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	instanceID := uuid.NewString()
	logger = logger.With(zap.String("instance", instanceID))

	provider, shutdownMetrics, err := telemetry.Setup(ctx, telemetry.Config{
		Exporter:    cfg.Telemetry.Exporter,
		Interval:    cfg.Telemetry.Interval,
		ServiceName: "swarmguardd",
		InstanceID:  instanceID,
		Writer:      os.Stderr,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry error: %v\n", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownMetrics(shutdownCtx)
	}()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		fmt.Fprintf(os.Stderr, "redis error: %v\n", err)
		return 1
	}

	stats, closeStats, err := openStats(ctx, cfg, rdb)
	if err != nil {
		fmt.Fprintf(os.Stderr, "broker error: %v\n", err)
		return 1
	}
	defer closeStats()

	var observers []guard.Observer
	recorder, closeHistory, err := openHistory(ctx, cfg, doc.Swarm, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "history error: %v\n", err)
		return 1
	}
	defer closeHistory()
	if recorder != nil {
		observers = append(observers, recorder)
	}

	var ui *live.Controller
	if decision.UseLive {
		ui = live.Start(os.Stdout, live.Options{NoColor: os.Getenv("NO_COLOR") != ""})
		observers = append(observers, ui)
	}

	eng := engine.New(engine.Deps{
		Swarm:     doc.Swarm,
		Stats:     stats,
		Publisher: redisq.NewPublisher(rdb, doc.Swarm, redisq.WithKeyPrefix(cfg.Redis.KeyPrefix)),
		Observers: observers,
		Logger:    logger,
		Meter:     provider.Meter("swarmguard"),
	}, settings...)
	if eng.IsEmpty() {
		logger.Warn("policy declares no queues; nothing to guard")
	}

	if ui != nil {
		ui.OnEngineStart(doc.Swarm, instanceID, len(settings))
	}
	if err := eng.Start(); err != nil {
		if ui != nil {
			ui.Close()
			ui.Wait()
		}
		fmt.Fprintf(os.Stderr, "engine error: %v\n", err)
		return 1
	}
	logger.Info("guards started", zap.String("swarm", doc.Swarm), zap.Int("guards", len(settings)))

	var server *http.Server
	errCh := make(chan error, 1)
	if cfg.HTTP.ListenAddr != "" {
		server = &http.Server{
			Addr:              cfg.HTTP.ListenAddr,
			Handler:           api.NewHandler(api.Config{Engine: eng}),
			ReadHeaderTimeout: shutdownTimeout,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	code := 0
	select {
	case <-ctx.Done():
	case <-uiDone(ui):
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		code = 1
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		_ = server.Shutdown(shutdownCtx)
		cancel()
	}
	eng.Stop()
	if ui != nil {
		ui.OnEngineStop()
		ui.Close()
		ui.Wait()
	}
	logger.Info("guards stopped")
	return code
}

// openStats selects the queue-depth source named by cfg.Broker.
func openStats(ctx context.Context, cfg config, rdb *redis.Client) (guard.QueueStats, func(), error) {
	if cfg.Broker == "mongo" {
		broker, err := mongoq.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, nil, err
		}
		return broker, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = broker.Close(closeCtx)
		}, nil
	}
	return redisq.NewBroker(rdb, redisq.WithKeyPrefix(cfg.Redis.KeyPrefix)), func() {}, nil
}

// openHistory starts a recorded run when a history path is configured.
func openHistory(ctx context.Context, cfg config, swarm string, logger *zap.Logger) (*history.Recorder, func(), error) {
	if cfg.History.Path == "" {
		return nil, func() {}, nil
	}
	db, err := history.Open(ctx, cfg.History.Path)
	if err != nil {
		return nil, nil, err
	}
	runID, err := history.BeginRun(ctx, db, swarm, time.Now())
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	logger.Info("recording history", zap.String("run", runID), zap.String("path", cfg.History.Path))
	recorder := history.NewRecorder(db, runID, logger)
	return recorder, func() { closeRecorder(recorder, db, logger) }, nil
}

func closeRecorder(recorder *history.Recorder, db *sql.DB, logger *zap.Logger) {
	recorder.Close()
	if dropped := recorder.Dropped(); dropped > 0 {
		logger.Warn("history dropped snapshots", zap.Int64("dropped", dropped))
	}
	_ = db.Close()
}

// uiDone returns a channel closed when the live UI exits; nil when there is none.
func uiDone(ui *live.Controller) <-chan struct{} {
	if ui == nil {
		return nil
	}
	return ui.Done()
}
