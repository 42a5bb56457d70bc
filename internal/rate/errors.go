package rate

import "errors"

var (
	// ErrRateLimited is returned once an email or IP has exhausted its login budget.
	ErrRateLimited = errors.New("rate limited")
	ErrRedisUnavailable = errors.New("redis unavailable")
)
