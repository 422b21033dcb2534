package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Avasam/Global-speedrunning-leaderboard/internal/adapters/mq/kafka"
	"github.com/Avasam/Global-speedrunning-leaderboard/internal/adapters/repository"
	"github.com/Avasam/Global-speedrunning-leaderboard/internal/adapters/speedrun"
	"github.com/Avasam/Global-speedrunning-leaderboard/internal/config"
	"github.com/Avasam/Global-speedrunning-leaderboard/internal/domain/aggregate"
	"github.com/Avasam/Global-speedrunning-leaderboard/internal/domain/scoring"
	"github.com/Avasam/Global-speedrunning-leaderboard/pkg/logger"
)

// FromConfig builds a Service and every adapter it owns from cfg. The
// service is not started.
func FromConfig(ctx context.Context, cfg *config.Config, log logger.Logger) (*Service, error) {
	var closers []io.Closer
	fail := func(err error) (*Service, error) {
		for _, c := range closers {
			_ = c.Close()
		}
		return nil, err
	}

	ttl := time.Duration(cfg.MetadataCacheTTLSeconds) * time.Second
	var cache speedrun.Cache
	if cfg.RedisAddr != "" {
		redisCache := speedrun.NewRedisCache(cfg.RedisAddr, ttl)
		closers = append(closers, redisCache)
		if err := redisCache.Ping(ctx); err != nil {
			return fail(fmt.Errorf("metadata cache: %w", err))
		}
		cache = redisCache
	} else {
		cache = speedrun.NewLRUCache(cfg.MetadataCacheSize, ttl)
	}

	client := speedrun.New(
		speedrun.WithBaseURL(cfg.APIBaseURL),
		speedrun.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.HTTPTimeoutMS) * time.Millisecond}),
		speedrun.WithRetryableStatuses(cfg.RetryableStatuses),
		speedrun.WithRetryDelay(time.Duration(cfg.RetryDelayMS)*time.Millisecond),
		speedrun.WithMaxAttempts(uint(cfg.MaxRetryAttempts)),
		speedrun.WithCache(cache),
		speedrun.WithLogger(log.Named("speedrun")),
	)

	var store repository.Store
	switch cfg.Store {
	case config.StoreMemory:
		store = repository.NewMemoryStore()
	default:
		sqlite, err := repository.NewSQLiteStore(ctx, cfg.DatabasePath, repository.WithLogger(log.Named("repository")))
		if err != nil {
			return fail(err)
		}
		store = sqlite
	}

	var publisher kafka.Publisher = kafka.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		p, err := kafka.NewKafkaPublisher(cfg.KafkaBrokers,
			kafka.WithTopic(cfg.KafkaTopic),
			kafka.WithLogger(log.Named("kafka")))
		if err != nil {
			_ = store.Close()
			return fail(err)
		}
		publisher = p
	}

	calc := scoring.NewDeviationModel(
		scoring.WithMinLeaderboardSize(cfg.MinLeaderboardSize),
		scoring.WithDeviationMultiplier(cfg.DeviationMultiplier),
	)
	svc := New(client, store,
		WithLogger(log),
		WithPublisher(publisher),
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithAggregatorOptions(
			aggregate.WithConcurrency(cfg.EntryConcurrency),
			aggregate.WithCalculator(calc),
		),
	)
	svc.closers = closers
	return svc, nil
}
