package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	limiterSweepEvery = 5 * time.Minute
	limiterIdleAfter  = 10 * time.Minute
)

// ipLimiter stores per-IP rate limiters with automatic cleanup.
type ipLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(r rate.Limit, burst int) *ipLimiter {
	return &ipLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     r,
		burst:    burst,
		now:      time.Now,
	}
}

func (ipl *ipLimiter) getLimiter(ip string) *rate.Limiter {
	ipl.mu.Lock()
	defer ipl.mu.Unlock()

	entry, exists := ipl.limiters[ip]
	if !exists {
		limiter := rate.NewLimiter(ipl.rate, ipl.burst)
		ipl.limiters[ip] = &limiterEntry{limiter: limiter, lastSeen: ipl.now()}
		return limiter
	}

	entry.lastSeen = ipl.now()
	return entry.limiter
}

// sweep drops limiters idle for longer than limiterIdleAfter.
func (ipl *ipLimiter) sweep() int {
	ipl.mu.Lock()
	defer ipl.mu.Unlock()

	removed := 0
	for ip, entry := range ipl.limiters {
		if ipl.now().Sub(entry.lastSeen) > limiterIdleAfter {
			delete(ipl.limiters, ip)
			removed++
		}
	}
	return removed
}

func (ipl *ipLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ipl.sweep()
		}
	}
}

// retryAfter is the whole number of seconds until one more token is available.
func (ipl *ipLimiter) retryAfter() int {
	if ipl.rate <= 0 {
		return 60
	}
	secs := int(1/float64(ipl.rate) + 0.999)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// RateLimit returns middleware that limits requests per client IP.
// r is the number of requests allowed per second, burst is the max burst size.
// trustedProxies is the number of reverse proxies in front of the server
// that append to X-Forwarded-For; with 0 the header is ignored.
// The idle-limiter sweeper stops when ctx ends.
//
// For login: RateLimit(ctx, rate.Every(12*time.Second), 5, 0, log) = ~5 attempts/minute max.
func RateLimit(ctx context.Context, r rate.Limit, burst, trustedProxies int, log *zap.Logger) func(http.Handler) http.Handler {
	ipl := newIPLimiter(r, burst)
	go ipl.cleanup(ctx)

	if log == nil {
		log = zap.NewNop()
	}
	wait := strconv.Itoa(ipl.retryAfter())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustedProxies)

			if !ipl.getLimiter(ip).Allow() {
				log.Warn("rate limited", zap.String("ip", ip), zap.String("path", r.URL.Path))
				w.Header().Set("Retry-After", wait)
				writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the address of the client as seen by the outermost of
// trustedProxies proxies. Entries left of that hop are client-supplied and
// never used.
func clientIP(r *http.Request, trustedProxies int) string {
	xff := r.Header.Get("X-Forwarded-For")
	if trustedProxies <= 0 || xff == "" {
		return remoteHost(r)
	}
	hops := strings.Split(xff, ",")
	i := len(hops) - trustedProxies
	if i < 0 {
		i = 0
	}
	ip := strings.TrimSpace(hops[i])
	if net.ParseIP(ip) == nil {
		return remoteHost(r)
	}
	return ip
}

// remoteHost is the host part of the connection's peer address.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
