package service

import "errors"

// Sentinel errors returned by Service.
var (
	ErrNotStarted       = errors.New("service not started")
	ErrInvalidProfileID = errors.New("profile id must not be empty")
	ErrAlreadyPending   = errors.New("profile update already pending")
	ErrBackpressure     = errors.New("update queue is full")
	ErrSave             = errors.New("save leaderboard row")
	ErrUpdateFailed     = errors.New("errors occurred while scoring profile")
)
