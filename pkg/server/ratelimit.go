package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/theapemachine/a2a-go/pkg/auth"
	rpcerrors "github.com/theapemachine/a2a-go/pkg/errors"
)

// ClientRateLimiter applies a per-remote-address token bucket ahead of
// handler dispatch, one bucket per caller so a noisy client can't starve
// everyone else's message/send calls.
type ClientRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*auth.RateLimiter
	rate     int64
	interval time.Duration
}

// NewClientRateLimiter builds a per-client limiter allowing `rate` requests
// per `interval`, lazily creating one bucket per remote address seen.
func NewClientRateLimiter(rate int64, interval time.Duration) *ClientRateLimiter {
	return &ClientRateLimiter{
		limiters: make(map[string]*auth.RateLimiter),
		rate:     rate,
		interval: interval,
	}
}

func (c *ClientRateLimiter) allow(key string) bool {
	c.mu.Lock()
	rl, ok := c.limiters[key]
	if !ok {
		rl = auth.NewRateLimiter(c.rate, c.interval)
		c.limiters[key] = rl
	}
	c.mu.Unlock()
	return rl.Allow()
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware wraps an http.Handler, rejecting requests over the limit with
// InvalidRequestError before they reach the JSON-RPC/REST dispatch tables.
func (c *ClientRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.allow(clientKey(r)) {
			respondError(w, nil, rpcerrors.ErrInvalidRequest.WithMessagef("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
