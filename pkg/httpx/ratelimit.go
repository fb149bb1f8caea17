package httpx

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig allows RequestsPerWindow requests per Window per key, with
// up to Burst requests at once.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

// Profiles. Each may be overridden with RATELIMIT_{NAME}_REQUESTS,
// RATELIMIT_{NAME}_WINDOW_SEC and RATELIMIT_{NAME}_BURST.
var (
	// StrictLimit guards credential-guessing surfaces: login, reset, confirm.
	StrictLimit = RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5}
	// ModerateLimit covers authenticated writes such as sending codes.
	ModerateLimit = RateLimitConfig{RequestsPerWindow: 20, Window: time.Minute, Burst: 20}
	LenientLimit  = RateLimitConfig{RequestsPerWindow: 100, Window: time.Minute, Burst: 100}
	PublicLimit   = RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}
)

func init() {
	StrictLimit = ParseRateLimitFromEnv("STRICT", StrictLimit)
	ModerateLimit = ParseRateLimitFromEnv("MODERATE", ModerateLimit)
	LenientLimit = ParseRateLimitFromEnv("LENIENT", LenientLimit)
	PublicLimit = ParseRateLimitFromEnv("PUBLIC", PublicLimit)
}

// ParseRateLimitFromEnv overlays RATELIMIT_{prefix}_* variables on def.
// Invalid or non-positive values are ignored.
func ParseRateLimitFromEnv(prefix string, def RateLimitConfig) RateLimitConfig {
	cfg := def
	if n, ok := positiveEnv("RATELIMIT_" + prefix + "_REQUESTS"); ok {
		cfg.RequestsPerWindow = n
	}
	if n, ok := positiveEnv("RATELIMIT_" + prefix + "_WINDOW_SEC"); ok {
		cfg.Window = time.Duration(n) * time.Second
	}
	if n, ok := positiveEnv("RATELIMIT_" + prefix + "_BURST"); ok {
		cfg.Burst = n
	}
	return cfg
}

func positiveEnv(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Decision is a limiter verdict for one request.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter decides whether the request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// LimiterFactory builds one Limiter per profile, so every route group keeps
// its own counters.
type LimiterFactory func(name string, cfg RateLimitConfig) Limiter

// NewLocalLimiterFactory keeps counters in process memory.
func NewLocalLimiterFactory() LimiterFactory {
	return func(_ string, cfg RateLimitConfig) Limiter { return NewLocalLimiter(cfg) }
}

// LocalLimiter is a per-key token bucket held in process memory.
type LocalLimiter struct {
	limit rate.Limit
	burst int

	limiters sync.Map // key -> *rate.Limiter

	mu          sync.Mutex
	lastCleanup time.Time
}

func NewLocalLimiter(cfg RateLimitConfig) *LocalLimiter {
	return &LocalLimiter{
		limit:       rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
		burst:       cfg.Burst,
		lastCleanup: time.Now(),
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (Decision, error) {
	lim := l.limiter(key)
	if lim.Allow() {
		return Decision{Allowed: true}, nil
	}

	// Peek at the wait without spending a token.
	res := lim.Reserve()
	delay := res.Delay()
	res.Cancel()
	return Decision{Allowed: false, RetryAfter: delay}, nil
}

func (l *LocalLimiter) limiter(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}
	v, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.limit, l.burst))
	l.sweep()
	return v.(*rate.Limiter)
}

// sweep drops idle buckets (full of tokens) at most every five minutes.
func (l *LocalLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.lastCleanup) < 5*time.Minute {
		return
	}
	l.lastCleanup = time.Now()

	l.limiters.Range(func(k, v any) bool {
		if v.(*rate.Limiter).Tokens() >= float64(l.burst) {
			l.limiters.Delete(k)
		}
		return true
	})
}

// KeyExtractor groups requests for rate limiting. An empty key skips the
// limiter.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor keys by the connection address. Forwarding headers are
// ignored because any client can set them; behind a reverse proxy use
// TrustedProxyIPExtractor instead.
func IPKeyExtractor(r *http.Request) string {
	return remoteIP(r)
}

func remoteIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ParseTrustedProxies parses CIDR blocks or single addresses.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

// TrustedProxyIPExtractor reads X-Forwarded-For and X-Real-IP only when the
// connection comes from one of proxies. X-Forwarded-For is walked from the
// right and the first hop that is not itself a trusted proxy wins, so hops a
// client prepends are never reached.
func TrustedProxyIPExtractor(proxies []netip.Prefix) KeyExtractor {
	trusted := func(s string) bool {
		a, err := netip.ParseAddr(strings.TrimSpace(s))
		if err != nil {
			return false
		}
		a = a.Unmap()
		for _, p := range proxies {
			if p.Contains(a) {
				return true
			}
		}
		return false
	}

	return func(r *http.Request) string {
		peer := remoteIP(r)
		if !trusted(peer) {
			return peer
		}
		if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
			hops := strings.Split(strings.Join(xff, ","), ",")
			for i := len(hops) - 1; i >= 0; i-- {
				hop := strings.TrimSpace(hops[i])
				if hop == "" {
					continue
				}
				if _, err := netip.ParseAddr(hop); err != nil {
					// Garbage from the client side of the chain.
					return peer
				}
				if !trusted(hop) {
					return hop
				}
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			if _, err := netip.ParseAddr(xri); err == nil {
				return xri
			}
		}
		return peer
	}
}

// SubjectKeyExtractor keys by authenticated account id.
func SubjectKeyExtractor(r *http.Request) string {
	return SubjectFromContext(r.Context())
}

// SubjectOrIPKeyExtractor keys authenticated requests by account id alone and
// anonymous ones by ip. The prefixes keep the two key spaces apart.
func SubjectOrIPKeyExtractor(ip KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		if sub := SubjectKeyExtractor(r); sub != "" {
			return "sub:" + sub
		}
		if k := ip(r); k != "" {
			return "ip:" + k
		}
		return ""
	}
}

// RateLimit rejects requests over the limit with 429 and a Retry-After
// header. Limiter failures let the request through.
func RateLimit(l Limiter, cfg RateLimitConfig, keyFn KeyExtractor) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			key := keyFn(r)
			if key == "" {
				log.Warn("rate limit: no key for request, allowing")
				next.ServeHTTP(w, r)
				return
			}

			d, err := l.Allow(r.Context(), key)
			if err != nil {
				log.Error("rate limit: limiter unavailable, allowing", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			retry := max(int(d.RetryAfter.Round(time.Second).Seconds()), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Window", cfg.Window.String())
			log.Warn("rate limit exceeded", "key", key, "path", r.URL.Path, "retry_after", retry)
			WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests, try again later")
		})
	}
}

// RateLimitByIP is RateLimit with a fresh in-process limiter keyed by IP.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimit(NewLocalLimiter(cfg), cfg, IPKeyExtractor)
}

// RateLimitBySubject keys by account id, falling back to IP when anonymous.
func RateLimitBySubject(cfg RateLimitConfig) Middleware {
	return RateLimit(NewLocalLimiter(cfg), cfg, SubjectOrIPKeyExtractor(IPKeyExtractor))
}
