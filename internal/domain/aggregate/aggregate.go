// Package aggregate scores every personal best of a profile and reduces them
// to one total.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Avasam/Global-speedrunning-leaderboard/internal/domain/classify"
	model "github.com/Avasam/Global-speedrunning-leaderboard/internal/domain/model"
	"github.com/Avasam/Global-speedrunning-leaderboard/internal/domain/scoring"
	"github.com/Avasam/Global-speedrunning-leaderboard/pkg/logger"
	"github.com/Avasam/Global-speedrunning-leaderboard/pkg/metrics"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

const defaultConcurrency = 16

// Source is everything a profile run reads from the ranking provider.
type Source interface {
	Profile(ctx context.Context, profileID string) (model.ProfileIdentity, error)
	PersonalBests(ctx context.Context, profileID string) ([]model.PersonalBest, error)
	classify.VariableSource
	scoring.Source
}

// ProgressSink observes how many records of the current run are done.
// It has no effect on the run.
type ProgressSink func(current, total int)

// Aggregator computes profile totals. It is safe for concurrent use; every
// call to ScoreProfile gets its own classifier and accumulators.
type Aggregator struct {
	src         Source
	calc        scoring.Calculator
	concurrency int
	log         logger.Logger
	progress    ProgressSink
}

// New creates an Aggregator reading from src.
func New(src Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		src:         src,
		calc:        scoring.NewDeviationModel(),
		concurrency: defaultConcurrency,
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.progress == nil {
		a.progress = func(current, total int) {
			a.log.Debug(context.Background(), fmt.Sprintf("%d/%d complete", current, total))
		}
	}
	return a
}

// ScoreProfile resolves profileID and scores its personal bests.
//
// Failures while processing a single record are returned as ErrorRecords
// and never stop the other records. Failing to resolve the profile or to
// list its personal bests is returned as an error. A banned profile is
// returned with no points and no work done.
func (a *Aggregator) ScoreProfile(ctx context.Context, profileID string) (model.Profile, []model.ErrorRecord, error) {
	identity, err := a.src.Profile(ctx, profileID)
	if err != nil {
		return model.Profile{}, nil, fmt.Errorf("%w %q: %w", ErrResolveProfile, profileID, err)
	}
	profile := model.NewProfile(identity)
	if profile.Banned {
		return profile, nil, nil
	}

	pbs, err := a.src.PersonalBests(ctx, identity.ID)
	if err != nil {
		return profile, nil, fmt.Errorf("%w for %s: %w", ErrPersonalBests, identity.ID, err)
	}

	state := &profileRun{
		classifier: classify.New(a.src),
		scorer:     scoring.NewScorer(a.src, scoring.WithCalculator(a.calc), scoring.WithLogger(a.log)),
		best:       make(map[string]float64),
	}
	total := len(pbs)
	var done atomic.Int64
	a.progress(0, total)

	p := pool.New().WithMaxGoroutines(a.concurrency)
	for _, pb := range pbs {
		p.Go(func() {
			defer func() { a.progress(int(done.Add(1)), total) }()
			if ctx.Err() != nil {
				return
			}
			var pc panics.Catcher
			pc.Try(func() { state.process(ctx, pb) })
			if r := pc.Recovered(); r != nil {
				metrics.RecordEntry(metrics.EntryFailed)
				state.fail(model.ErrorRecord{Kind: model.ErrorKindUnhandled, Details: r.String()})
			}
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return profile, state.errs, fmt.Errorf("score profile %s: %w", identity.ID, err)
	}

	// Summed in key order so identical runs produce identical totals.
	for _, key := range slices.Sorted(maps.Keys(state.best)) {
		points := state.best[key]
		profile.CategoryScores[key] = points
		profile.TotalPoints += points
	}
	if profile.Banned || profile.TotalPoints < 1 {
		profile.TotalPoints = 0
	}

	a.log.Info(ctx, profile.String()+"\n"+profile.Breakdown(),
		logger.String("profile_id", profile.ID),
		logger.Int("personal_bests", total),
		logger.Int("categories", len(profile.CategoryScores)),
		logger.Int("errors", len(state.errs)),
		logger.Float64("points", profile.TotalPoints))
	return profile, state.errs, nil
}

// profileRun holds the state shared by the tasks of one ScoreProfile call.
type profileRun struct {
	classifier *classify.Classifier
	scorer     *scoring.Scorer

	mu   sync.Mutex
	best map[string]float64 // category key -> max points
	errs []model.ErrorRecord
}

func (r *profileRun) process(ctx context.Context, pb model.PersonalBest) {
	entry, ok, err := r.classifier.Classify(ctx, pb)
	if err != nil {
		metrics.RecordEntry(metrics.EntryFailed)
		r.fail(recordFor(err))
		return
	}
	if !ok {
		metrics.RecordEntry(metrics.EntryIneligible)
		return
	}

	entry, err = r.scorer.Score(ctx, entry)
	if err != nil {
		metrics.RecordEntry(metrics.EntryFailed)
		r.fail(recordFor(err))
		return
	}
	if entry.Points <= 0 {
		metrics.RecordEntry(metrics.EntryZero)
		return
	}
	metrics.RecordEntry(metrics.EntryScored)
	r.keepMax(entry.CategoryKey(), entry.Points)
}

func (r *profileRun) keepMax(key string, points float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.best[key]; !ok || points > cur {
		r.best[key] = points
	}
}

func (r *profileRun) fail(rec model.ErrorRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, rec)
}

func recordFor(err error) model.ErrorRecord {
	var ke model.KindError
	if errors.As(err, &ke) {
		return model.ErrorRecord{Kind: ke.Kind(), Details: err.Error()}
	}
	return model.ErrorRecord{Kind: model.ErrorKindUnhandled, Details: err.Error()}
}
