package aggregate

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrResolveProfile = errors.New("resolve profile")
	ErrPersonalBests  = errors.New("fetch personal bests")
)
