// Package ratelimit provides a per-client request gate backed by
// token-bucket limiters. Callers consult the gate before invoking
// settlement operations; the gate never blocks, it only answers.
package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultMaxClients = 1000

// Gate tracks one token-bucket limiter per client id.
type Gate struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	rate       rate.Limit
	burst      int
	maxClients int
	logger     *zap.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the structured logger. Default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// WithMaxClients bounds the number of tracked clients. When the map
// grows past the bound it is reset, so idle clients do not leak.
func WithMaxClients(n int) Option {
	return func(g *Gate) { g.maxClients = n }
}

// NewGate returns a Gate allowing requestsPerMinute sustained requests
// per client with the given burst.
func NewGate(requestsPerMinute int, burst int, opts ...Option) *Gate {
	g := &Gate{
		limiters:   make(map[string]*rate.Limiter),
		rate:       rate.Limit(float64(requestsPerMinute) / float64(time.Minute/time.Second)),
		burst:      burst,
		maxClients: defaultMaxClients,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Allow reports whether clientID may make a request now. The first
// sight of a client creates its limiter.
func (g *Gate) Allow(clientID string) bool {
	g.mu.Lock()
	limiter, ok := g.limiters[clientID]
	if !ok {
		if len(g.limiters) >= g.maxClients {
			g.logger.Warn("rate limit cache full, resetting",
				zap.Int("clients", len(g.limiters)))
			g.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(g.rate, g.burst)
		g.limiters[clientID] = limiter
	}
	g.mu.Unlock()

	allowed := limiter.Allow()
	if !allowed {
		g.logger.Warn("rate limit exceeded", zap.String("client", clientID))
	}
	return allowed
}

// Clients returns the number of tracked clients.
func (g *Gate) Clients() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.limiters)
}
