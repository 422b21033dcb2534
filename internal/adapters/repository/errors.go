package repository

import "errors"

// Sentinel kinds for leaderboard errors.
var (
	ErrNotFound     = errors.New("profile not found")
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
	ErrOpen         = errors.New("open leaderboard database")
)
