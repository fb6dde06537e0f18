package domain

import "time"

// RateLimitResult is the outcome of one rate limit check
type RateLimitResult struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
}
