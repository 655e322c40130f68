package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/postcodecheck/addresscleaner/pkg/httputil"
	"github.com/postcodecheck/addresscleaner/pkg/logger"
)

// visitor tracks a token bucket per client IP.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorStore manages per-IP limiters and evicts idle ones.
type visitorStore struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      float64
	burst    int
	ttl      time.Duration
	now      func() time.Time
}

func newVisitorStore(rps float64, burst int, ttl time.Duration) *visitorStore {
	return &visitorStore{
		visitors: make(map[string]*visitor),
		rps:      rps,
		burst:    burst,
		ttl:      ttl,
		now:      time.Now,
	}
}

// limiter returns (or creates) the limiter for ip and refreshes its lastSeen.
func (s *visitorStore) limiter(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(s.rps), s.burst)}
		s.visitors[ip] = v
	}
	v.lastSeen = s.now()
	return v.limiter
}

// cleanup evicts visitors idle for longer than the TTL.
func (s *visitorStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for ip, v := range s.visitors {
		if now.Sub(v.lastSeen) > s.ttl {
			delete(s.visitors, ip)
		}
	}
}

func (s *visitorStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visitors)
}

// RateLimiter enforces a per-IP token bucket. Call Stop to end the cleanup
// goroutine.
type RateLimiter struct {
	store  *visitorStore
	logger *slog.Logger
	done   chan struct{}
	once   sync.Once
}

// NewRateLimiter allows rps requests per second per client IP with the given
// burst. Idle clients are forgotten after three minutes.
func NewRateLimiter(rps float64, burst int, l *slog.Logger) *RateLimiter {
	const ttl = 3 * time.Minute

	rl := &RateLimiter{
		store:  newVisitorStore(rps, burst, ttl),
		logger: l,
		done:   make(chan struct{}),
	}
	go rl.cleanupLoop(ttl)
	return rl
}

func (rl *RateLimiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.store.cleanup()
		case <-rl.done:
			return
		}
	}
}

// Stop ends the background cleanup. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.done) })
}

// Handler returns the middleware. Rejected requests get 429 RATE_LIMITED.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.store.limiter(ip).Allow() {
			rl.logger.WarnContext(r.Context(), "rate limit exceeded",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "1")
			httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.Response{
				Error: &httputil.ErrorResponse{
					Code:      "RATE_LIMITED",
					Message:   "too many requests",
					RequestID: logger.CorrelationIDFromContext(r.Context()),
				},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the first valid address in X-Forwarded-For, then
// X-Real-IP, then the connection's remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip.String()
			}
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
