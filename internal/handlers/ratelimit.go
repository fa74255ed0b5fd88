package handlers

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxTrackedIPs        = 10000
	limiterSweepInterval = 10 * time.Minute
	rateLimitMessage     = "We have recieved too many request from you. Please try again after 1 hour"
)

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	mu  sync.Mutex
	ips map[string]*rate.Limiter
	r   rate.Limit
	b   int
}

// NewIPRateLimiter allows requests per window for each IP, all of which may
// be spent at once.
func NewIPRateLimiter(requests int, window time.Duration) *IPRateLimiter {
	if requests < 1 {
		requests = 1
	}
	if window <= 0 {
		window = time.Hour
	}
	return &IPRateLimiter{
		ips: make(map[string]*rate.Limiter),
		r:   rate.Limit(float64(requests) / window.Seconds()),
		b:   requests,
	}
}

// GetLimiter returns the bucket of ip, creating it on first use.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	limiter, exists := i.ips[ip]
	if !exists {
		limiter = rate.NewLimiter(i.r, i.b)
		i.ips[ip] = limiter
	}
	return limiter
}

// StartCleanup drops all buckets whenever too many IPs are tracked, until ctx ends.
func (i *IPRateLimiter) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(limiterSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				i.mu.Lock()
				if len(i.ips) > maxTrackedIPs {
					i.ips = make(map[string]*rate.Limiter)
				}
				i.mu.Unlock()
			}
		}
	}()
}

// Middleware rejects requests of clients that spent their budget. It keys
// on RemoteAddr, which only reflects forwarding headers when the router
// runs middleware.RealIP for a trusted proxy.
func (i *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !i.GetLimiter(clientIP(r)).Allow() {
			writeJSON(w, http.StatusTooManyRequests, Envelope{Status: statusFail, Message: rateLimitMessage})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
