// Package service ties profile scoring to the leaderboard store, the
// asynchronous update queue and update notifications.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Avasam/Global-speedrunning-leaderboard/internal/adapters/mq/kafka"
	"github.com/Avasam/Global-speedrunning-leaderboard/internal/adapters/mq/queue"
	"github.com/Avasam/Global-speedrunning-leaderboard/internal/adapters/mq/worker"
	"github.com/Avasam/Global-speedrunning-leaderboard/internal/adapters/repository"
	"github.com/Avasam/Global-speedrunning-leaderboard/internal/domain/aggregate"
	"github.com/Avasam/Global-speedrunning-leaderboard/internal/domain/dedupe"
	"github.com/Avasam/Global-speedrunning-leaderboard/internal/domain/model"
	"github.com/Avasam/Global-speedrunning-leaderboard/pkg/logger"
	"github.com/Avasam/Global-speedrunning-leaderboard/pkg/metrics"
)

const (
	defaultQueueSize  = 1_000
	defaultDedupeSize = 50_000
	defaultJobTimeout = 10 * time.Minute
)

// Stats is a point-in-time view of the service.
type Stats struct {
	Started       bool  `json:"started"`
	Workers       int   `json:"workers"`
	QueueCapacity int   `json:"queue_capacity"`
	QueueLength   int   `json:"queue_length"`
	Pending       int64 `json:"pending"`
	Profiles      int   `json:"profiles"`
}

// Service implements the API dependencies for the leaderboard system.
type Service struct {
	mu sync.RWMutex

	// Core components
	aggregator *aggregate.Aggregator
	store      repository.Store
	publisher  kafka.Publisher
	deduper    dedupe.Deduper
	queue      *queue.InMemoryQueue
	pool       *worker.Pool
	closers    []io.Closer

	// Configuration
	aggregatorOpts []aggregate.Option
	workerCount    int
	queueSize      int
	dedupeSize     int
	jobTimeout     time.Duration
	now            func() time.Time

	started bool

	logger logger.Logger
}

// New builds a Service scoring profiles from src and saving them to store.
// The service owns store and the publisher; Stop closes both.
func New(src aggregate.Source, store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		publisher:   kafka.NopPublisher{},
		workerCount: runtime.NumCPU(),
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
		jobTimeout:  defaultJobTimeout,
		now:         time.Now,
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("service")

	aggOpts := append([]aggregate.Option{aggregate.WithLogger(s.logger.Named("aggregate"))}, s.aggregatorOpts...)
	s.aggregator = aggregate.New(src, aggOpts...)
	return s
}

// Start creates the update queue and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s,
		worker.WithLogger(s.logger),
		worker.WithJobTimeout(s.jobTimeout),
	)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "leaderboard service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains the workers, then closes the publisher and the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.started {
		if err := s.pool.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		s.started = false
	}
	if err := s.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	s.logger.Info(ctx, "leaderboard service stopped")
	return errors.Join(errs...)
}

// UpdateProfile scores profileID and writes its row when the run was clean
// and earned points. Per-record failures produce an OutcomeFailed report
// and nothing is written. The returned error is reserved for failures that
// stop the whole update.
func (s *Service) UpdateProfile(ctx context.Context, profileID string) (Report, error) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return Report{}, ErrInvalidProfileID
	}

	start := time.Now()
	profile, records, err := s.aggregator.ScoreProfile(ctx, profileID)
	if err != nil {
		metrics.RecordProfileUpdate("error")
		return Report{}, err
	}
	metrics.RecordProfileScored(profile.TotalPoints, time.Since(start).Seconds())

	report := Report{Profile: profile, Errors: records}
	switch {
	case len(records) > 0:
		report.Outcome = OutcomeFailed
		report.Text = failedText(records)
	case profile.Banned || profile.TotalPoints <= 0:
		report.Outcome = OutcomeSkipped
		report.Text = skippedText(profile)
	default:
		at := s.now()
		result, err := s.store.Save(ctx, profile, at)
		if err != nil {
			metrics.RecordProfileUpdate("error")
			return Report{}, fmt.Errorf("%w for %s: %w", ErrSave, profile.ID, err)
		}
		report.Outcome = OutcomeUpdated
		if result == repository.Inserted {
			report.Outcome = OutcomeInserted
		}
		report.Text = savedText(profile, report.Outcome)
		s.publish(ctx, profile, result, at)
	}

	metrics.RecordProfileUpdate(string(report.Outcome))
	s.logger.Info(ctx, report.Text,
		logger.String("profile_id", profile.ID),
		logger.String("outcome", string(report.Outcome)))
	return report, nil
}

// A failed notification never undoes a saved row.
func (s *Service) publish(ctx context.Context, p model.Profile, result repository.SaveResult, at time.Time) {
	err := s.publisher.Publish(ctx, kafka.ProfileUpdated{
		ProfileID:   p.ID,
		DisplayName: p.DisplayName,
		Points:      p.TotalPoints,
		Inserted:    result == repository.Inserted,
		UpdatedAt:   at,
	})
	if err != nil {
		s.logger.Warn(ctx, "profile update notification failed",
			logger.String("profile_id", p.ID), logger.Error(err))
	}
}

// Enqueue schedules an asynchronous update and returns its job id.
func (s *Service) Enqueue(ctx context.Context, profileID string) (string, error) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return "", ErrInvalidProfileID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return "", ErrNotStarted
	}

	if s.deduper.SeenAndRecord(ctx, profileID) {
		return "", fmt.Errorf("%w: %s", ErrAlreadyPending, profileID)
	}

	job := model.UpdateJob{
		ID:          uuid.NewString(),
		ProfileID:   profileID,
		RequestedAt: s.now(),
	}
	if !s.queue.Enqueue(ctx, job) {
		s.deduper.Unrecord(ctx, profileID)
		return "", ErrBackpressure
	}
	s.logger.Debug(ctx, "update queued",
		logger.String("job_id", job.ID),
		logger.String("profile_id", profileID))
	return job.ID, nil
}

// Process runs one queued update. It releases the profile so it can be
// queued again once this update is over.
func (s *Service) Process(ctx context.Context, job worker.Job) error {
	defer s.deduper.Unrecord(ctx, job.ProfileID)

	report, err := s.UpdateProfile(ctx, job.ProfileID)
	if err != nil {
		return err
	}
	if report.Outcome == OutcomeFailed {
		return fmt.Errorf("%w: %d record(s) for %s", ErrUpdateFailed, len(report.Errors), job.ProfileID)
	}
	return nil
}

// TopN returns the top N leaderboard rows.
func (s *Service) TopN(ctx context.Context, n int) ([]repository.Entry, error) {
	return s.store.TopN(ctx, n)
}

// Rank returns the leaderboard row of profileID.
func (s *Service) Rank(ctx context.Context, profileID string) (repository.Entry, error) {
	return s.store.Rank(ctx, profileID)
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles, err := s.store.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Started: s.started, Profiles: profiles}
	if s.started {
		stats.Workers = s.pool.Size()
		stats.QueueCapacity = s.queue.Capacity()
		stats.QueueLength = s.queue.Len(ctx)
		stats.Pending = s.deduper.Size()
		metrics.UpdateQueueSize(stats.QueueLength)
	}
	return stats, nil
}
