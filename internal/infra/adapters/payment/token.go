package payment

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

type credential struct {
	token     string
	expiresAt time.Time
}

// tokenSource caches a gateway access token. Readers load an immutable snapshot
// without locking; concurrent refreshes collapse into a single fetch.
type tokenSource struct {
	fetch  func(ctx context.Context) (token string, ttl time.Duration, err error)
	maxTTL time.Duration
	skew   time.Duration
	now    func() time.Time

	cur atomic.Pointer[credential]
	sf  singleflight.Group
}

func newTokenSource(fetch func(ctx context.Context) (string, time.Duration, error), maxTTL time.Duration) *tokenSource {
	return &tokenSource{fetch: fetch, maxTTL: maxTTL, skew: 30 * time.Second, now: time.Now}
}

func (s *tokenSource) fresh(c *credential) bool {
	return c != nil && s.now().Add(s.skew).Before(c.expiresAt)
}

func (s *tokenSource) Token(ctx context.Context) (string, error) {
	if c := s.cur.Load(); s.fresh(c) {
		return c.token, nil
	}
	v, err, _ := s.sf.Do("token", func() (interface{}, error) {
		if c := s.cur.Load(); s.fresh(c) {
			return c, nil
		}
		tok, ttl, err := s.fetch(ctx)
		if err != nil {
			return nil, err
		}
		if ttl <= 0 || (s.maxTTL > 0 && ttl > s.maxTTL) {
			ttl = s.maxTTL
		}
		c := &credential{token: tok, expiresAt: s.now().Add(ttl)}
		s.cur.Store(c)
		return c, nil
	})
	if err != nil {
		return "", err
	}
	return v.(*credential).token, nil
}

// Invalidate drops the cached token if it is still the one the caller saw rejected.
func (s *tokenSource) Invalidate(token string) {
	c := s.cur.Load()
	if c != nil && c.token == token {
		s.cur.CompareAndSwap(c, nil)
	}
}
