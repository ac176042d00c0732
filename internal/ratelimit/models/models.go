package models

import "time"

// RateLimitResult represents the outcome of a fixed-window rate limit check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// ResetEpochSeconds is the epoch second at which the current window ends.
func (r *RateLimitResult) ResetEpochSeconds() int64 {
	return r.ResetAt.Unix()
}
