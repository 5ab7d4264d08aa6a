package httpx

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ariefcatur/b2b-commerce/internal/commerce"
)

// Identity is resolved by the upstream auth gateway and forwarded as headers.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

type actorKey struct{}

func withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderActorID))
		role := commerce.Role(strings.ToUpper(strings.TrimSpace(r.Header.Get(HeaderActorRole))))
		if id == "" || (role != commerce.RoleBuyer && role != commerce.RoleSeller) {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing or invalid actor"})
			return
		}
		ctx := context.WithValue(r.Context(), actorKey{}, commerce.Actor{ID: id, Role: role})
		ctx = commerce.WithTraceID(ctx, middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFrom(ctx context.Context) commerce.Actor {
	a, _ := ctx.Value(actorKey{}).(commerce.Actor)
	return a
}

func accessLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// actorLimiter keeps one token bucket per actor id.
type actorLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rps     rate.Limit
	burst   int
}

func newActorLimiter(rps float64, burst int) *actorLimiter {
	return &actorLimiter{buckets: map[string]*rate.Limiter{}, rps: rate.Limit(rps), burst: burst}
}

func (l *actorLimiter) allow(id string) bool {
	l.mu.Lock()
	b, ok := l.buckets[id]
	if !ok {
		b = rate.NewLimiter(l.rps, l.burst)
		l.buckets[id] = b
	}
	l.mu.Unlock()
	return b.Allow()
}

func (l *actorLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(actorFrom(r.Context()).ID) {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
