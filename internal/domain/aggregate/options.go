package aggregate

import (
	"github.com/Avasam/Global-speedrunning-leaderboard/internal/domain/scoring"
	"github.com/Avasam/Global-speedrunning-leaderboard/pkg/logger"
)

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithConcurrency bounds how many records of one profile are processed at once.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithCalculator sets the points model used for every entry.
func WithCalculator(c scoring.Calculator) Option {
	return func(a *Aggregator) {
		if c != nil {
			a.calc = c
		}
	}
}

// WithLogger sets the aggregator's logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.log = l
		}
	}
}

// WithProgress sets the sink notified as records complete.
func WithProgress(sink ProgressSink) Option {
	return func(a *Aggregator) {
		if sink != nil {
			a.progress = sink
		}
	}
}
