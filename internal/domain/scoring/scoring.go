// Package scoring turns a leaderboard snapshot into points for one entry.
//
// The model rewards how far an entry sits ahead of its field: the distance to
// the field's mean, corrected by the trailing edge of the leaderboard, is
// normalized by the spread and raised to a configurable exponent.
package scoring

import (
	"math"

	model "github.com/Avasam/Global-speedrunning-leaderboard/internal/domain/model"
)

// Default scoring configuration constants.
const (
	DefaultMinLeaderboardSize  = 3
	DefaultDeviationMultiplier = 1.5
	pointsScale                = 10
)

// Calculator computes points for a metric against a leaderboard snapshot.
type Calculator interface {
	Points(lb model.Leaderboard, metric float64) float64
}

// Option applies a configuration option to the DeviationModel.
type Option func(*DeviationModel)

// WithMinLeaderboardSize sets the smallest leaderboard worth scoring against.
func WithMinLeaderboardSize(n int) Option {
	return func(m *DeviationModel) {
		if n >= 2 {
			m.minSize = n
		}
	}
}

// WithDeviationMultiplier sets the exponent applied to the normalized deviation.
func WithDeviationMultiplier(x float64) Option {
	return func(m *DeviationModel) {
		if x > 1 {
			m.multiplier = x
		}
	}
}

// DeviationModel is the standard-deviation based Calculator. It holds no
// mutable state and is safe for concurrent use.
type DeviationModel struct {
	minSize    int
	multiplier float64
}

// NewDeviationModel creates a model with defaults overridden by opts.
func NewDeviationModel(opts ...Option) *DeviationModel {
	m := &DeviationModel{
		minSize:    DefaultMinLeaderboardSize,
		multiplier: DefaultDeviationMultiplier,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Points returns the points metric is worth on lb. Zero is a normal outcome:
// small boards, score-based boards, boards without spread and entries no
// better than the trailing edge are all worth nothing.
func (m *DeviationModel) Points(lb model.Leaderboard, metric float64) float64 {
	if len(lb.Entries) < m.minSize {
		return 0
	}
	if !isTimed(lb.Entries) {
		return 0
	}

	var (
		mean, sigma float64
		population  int
	)
	for _, e := range lb.Entries {
		if e.Place <= 0 || lb.IsBanned(e) {
			continue
		}
		// Welford's online mean and sum of squared deviations.
		population++
		prev := mean
		mean += (e.Metric - prev) / float64(population)
		sigma += (e.Metric - prev) * (e.Metric - mean)
	}
	if population == 0 {
		return 0
	}

	stdDev := math.Sqrt(sigma / float64(population))
	if stdDev == 0 {
		return 0
	}

	// The last delivered entry marks the trailing edge, whether or not it
	// was part of the population.
	lowestDeviation := lb.Entries[len(lb.Entries)-1].Metric - mean
	adjustedDeviation := (mean - metric) + lowestDeviation
	adjustedStdDev := stdDev + lowestDeviation
	if adjustedDeviation <= 0 || adjustedStdDev <= 0 {
		return 0
	}

	return math.Pow(adjustedDeviation/adjustedStdDev, m.multiplier) * pointsScale
}

// isTimed reports whether the board ranks lower metrics first. The first
// metric is the reference: a later, strictly greater metric confirms a timed
// board, a strictly lower one seen before that marks a score board.
func isTimed(entries []model.RankedEntry) bool {
	best := entries[0].Metric
	for _, e := range entries[1:] {
		switch {
		case e.Metric > best:
			return true
		case e.Metric < best:
			return false
		}
	}
	return false
}
