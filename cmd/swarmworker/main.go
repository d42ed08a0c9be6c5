package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"swarmguard/internal/logging"
	"swarmguard/internal/mongoq"
	"swarmguard/internal/redisq"
	"swarmguard/internal/worker"
	"swarmguard/pkg/ratelimiter"
)

// broker is a worker queue that can also declare queues.
type broker interface {
	worker.Queue
	Declare(ctx context.Context, queue string) error
}

func main() {
	os.Exit(run())
}

func run() int {
	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "swarmworker: %v\n", err)
		return 2
	}
	logger, err := logging.New(logging.Config{Level: opts.LogLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging error: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("swarm", opts.Swarm), zap.String("role", opts.Role))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
	defer rdb.Close()

	queue, closeQueue, err := openBroker(ctx, opts, rdb)
	if err != nil {
		logger.Error("open broker", zap.Error(err))
		return 1
	}
	defer closeQueue()
	for _, name := range opts.queues() {
		if err := queue.Declare(ctx, name); err != nil {
			logger.Error("declare queue", zap.String("queue", name), zap.Error(err))
			return 1
		}
	}

	role, sink := buildRole(opts, queue, logger)
	subscriber := redisq.NewSubscriber(rdb, opts.Swarm, opts.Role, sink, logger, redisq.WithKeyPrefix(opts.KeyPrefix))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return subscriber.Run(gctx) })
	g.Go(func() error { return role.Run(gctx) })
	logger.Info("worker started")
	if err := g.Wait(); err != nil {
		logger.Error("worker failed", zap.Error(err))
		return 1
	}
	logger.Info("worker stopped")
	return 0
}

// runner is one role loop.
type runner interface {
	Run(ctx context.Context) error
}

// buildRole wires the role named by opts and returns the sink rate updates apply to.
func buildRole(opts options, queue worker.Queue, logger *zap.Logger) (runner, redisq.RateSink) {
	mode, _ := opts.initialMode()
	switch opts.Role {
	case worker.RoleGenerator:
		limiter := ratelimiter.NewWithTick(mode, opts.Tick)
		return worker.NewGenerator(queue, opts.Out, limiter, opts.Tick, logger), limiter
	case worker.RoleModerator:
		limiter := ratelimiter.New(mode)
		return worker.NewModerator(queue, opts.In, opts.Out, limiter, logger), limiter
	default:
		p := worker.NewProcessor(queue, opts.In, opts.Rate, logger)
		return p, p
	}
}

func openBroker(ctx context.Context, opts options, rdb *redis.Client) (broker, func(), error) {
	if opts.Broker == "mongo" {
		b, err := mongoq.Connect(ctx, opts.MongoURI, opts.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		return b, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = b.Close(closeCtx)
		}, nil
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return redisq.NewBroker(rdb, redisq.WithKeyPrefix(opts.KeyPrefix)), func() {}, nil
}
