package api

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Idle client limiters are forgotten after limiterIdleTTL.
const (
	limiterCleanupInterval = time.Minute
	limiterIdleTTL         = 3 * time.Minute
)

// clientLimiter holds one token bucket per client IP.
type clientLimiter struct {
	perSecond rate.Limit
	burst     int

	mu      sync.Mutex
	clients map[string]*limitedClient
}

type limitedClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newClientLimiter allows requestsPerMin spread over a minute with the given
// burst. A non-positive burst is raised to 1.
func newClientLimiter(requestsPerMin, burst int) *clientLimiter {
	if burst < 1 {
		burst = 1
	}
	return &clientLimiter{
		perSecond: rate.Limit(requestsPerMin) / 60.0,
		burst:     burst,
		clients:   make(map[string]*limitedClient),
	}
}

// allow reports whether ip may make another request now.
func (l *clientLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	c, ok := l.clients[ip]
	if !ok {
		c = &limitedClient{limiter: rate.NewLimiter(l.perSecond, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	limiter := c.limiter
	l.mu.Unlock()

	return limiter.AllowN(now, 1)
}

// prune drops clients not seen since before.
func (l *clientLimiter) prune(before time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, c := range l.clients {
		if c.lastSeen.Before(before) {
			delete(l.clients, ip)
		}
	}
}

func (l *clientLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// cleanup prunes idle clients until ctx is cancelled.
func (l *clientLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.prune(now.Add(-limiterIdleTTL))
		}
	}
}

// rateLimitMiddleware answers 429 once a client exhausts its bucket.
// Proxy headers are ignored; the limit applies to the TCP peer.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.allow(clientIP(r), time.Now()) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the request's remote address without the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
