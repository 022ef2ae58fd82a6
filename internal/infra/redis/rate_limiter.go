package redis

import (
	"context"
	"time"
)

// Quota is the outcome of one rate-limited call.
type Quota struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// RateLimiter is a fixed-window counter keyed per caller.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Quota, error) {
	count, ttl, err := r.client.IncrWindow(ctx, key, window)
	if err != nil {
		return Quota{}, err
	}
	q := Quota{Allowed: count <= int64(limit), Limit: limit, ResetIn: ttl}
	if rem := int64(limit) - count; rem > 0 {
		q.Remaining = int(rem)
	}
	return q, nil
}

// ExportKey scopes the export counter to one admin subject.
func ExportKey(subject string) string {
	return "rate_limit:export:" + subject
}
