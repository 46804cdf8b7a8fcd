package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bookshop/internal/ratelimit"
	"bookshop/internal/usertoken"
	"bookshop/internal/util"
	"bookshop/pkg/payment"
	"bookshop/services/shop/internal/app"
	"bookshop/services/shop/internal/security"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

const maxJSONBody = 1 << 20

// Config wires the HTTP server. Redis is optional; without it the
// rate-limited routes are not limited.
type Config struct {
	App                *app.App
	Redis              *redis.Client
	RateLimitPerMinute int
	RequestTimeout     time.Duration
	TrustedProxies     *util.TrustedProxies
}

// Server exposes the shop's HTTP API.
type Server struct {
	app            *app.App
	router         chi.Router
	trusted        *util.TrustedProxies
	timeout        time.Duration
	tokenLimiter   *ratelimit.FixedWindowLimiter
	intentLimiter  *ratelimit.FixedWindowLimiter
	paymentLimiter *ratelimit.FixedWindowLimiter
	alerter        *security.AuditAlerter
}

func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	s := &Server{
		app:     cfg.App,
		trusted: cfg.TrustedProxies,
		timeout: timeout,
		alerter: security.NewAuditAlerter(cfg.Redis, "bookshop:alerts"),
	}
	if cfg.Redis != nil {
		limit := cfg.RateLimitPerMinute
		if limit <= 0 {
			limit = 30
		}
		newLimiter := func(name string) (*ratelimit.FixedWindowLimiter, error) {
			limiter, err := ratelimit.NewFixedWindowLimiter(cfg.Redis, "bookshop:ratelimit:"+name, limit, time.Minute)
			if err != nil {
				return nil, fmt.Errorf("init %s limiter: %w", name, err)
			}
			return limiter, nil
		}
		var err error
		if s.tokenLimiter, err = newLimiter("jwt"); err != nil {
			return nil, err
		}
		if s.intentLimiter, err = newLimiter("payment-intent"); err != nil {
			return nil, err
		}
		if s.paymentLimiter, err = newLimiter("payments"); err != nil {
			return nil, err
		}
	}
	s.routes()
	return s, nil
}

// Router returns the handler with the shared middleware chain applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("shop", util.WithSecurityHeaders(util.WithCORS(s.router))))
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		methodNotAllowed(w)
	})

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	r.With(s.rateLimited(s.tokenLimiter, "too many token requests")).Post("/jwt", s.handleIssueToken)

	// users
	r.With(s.verifyToken, s.verifyAdmin).Get("/users", s.handleListUsers)
	r.Post("/users", s.handleCreateUser)
	r.Get("/users/admin/{target}", s.handleIsAdmin)
	r.With(s.verifyToken, s.verifyAdmin).Patch("/users/admin/{target}", s.handleMakeAdmin)
	r.With(s.verifyToken, s.verifyAdmin).Delete("/users/{id}", s.handleDeleteUser)

	// catalog
	r.Get("/book", s.handleListBooks)
	r.Get("/book/{id}", s.handleGetBook)
	r.Group(func(admin chi.Router) {
		admin.Use(s.verifyToken, s.verifyAdmin)
		admin.Post("/book", s.handleCreateBook)
		admin.Put("/book/{id}", s.handleUpdateBook)
		admin.Delete("/book/{id}", s.handleDeleteBook)
		admin.Post("/book/{id}/cover", s.handleUploadCover)
	})
	r.Get("/reviews", s.handleListReviews)

	// carts & checkout
	r.Get("/carts", s.handleListCart)
	r.Post("/carts", s.handleAddToCart)
	r.Delete("/carts/{id}", s.handleRemoveFromCart)
	r.With(s.rateLimited(s.intentLimiter, "too many payment intent requests")).Post("/create-payment-intent", s.handleCreatePaymentIntent)
	r.With(s.verifyToken).Get("/payments/{email}", s.handlePaymentHistory)
	r.With(s.rateLimited(s.paymentLimiter, "too many payment requests")).Post("/payments", s.handleRecordPayment)

	// reports
	r.With(s.verifyToken, s.verifyAdmin).Get("/admin-stats", s.handleAdminStats)
	r.With(s.verifyToken, s.verifyAdmin).Get("/order-stats", s.handleOrderStats)

	s.router = r
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("bookshop server is running"))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps application errors to a status and a client-safe
// message. Store and unknown failures are logged with detail and answered
// with a generic 500.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrUnauthorized),
		errors.Is(err, usertoken.ErrInvalidToken),
		errors.Is(err, usertoken.ErrExpired):
		writeError(w, http.StatusUnauthorized, "unauthorized access")
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden access")
	case errors.Is(err, app.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, app.ErrCoversDisabled):
		writeError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, payment.ErrUnavailable):
		util.LoggerFromContext(r.Context()).Warn("payment processor unavailable", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusServiceUnavailable, "payment processor unavailable")
	case errors.Is(err, payment.ErrUpstream):
		util.LoggerFromContext(r.Context()).Warn("payment processor rejected request", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusBadGateway, "payment processor rejected the request")
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) clientIP(r *http.Request) string {
	return util.ClientIP(r, s.trusted)
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", s.clientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)

	alert, err := s.alerter.Observe(context.WithoutCancel(r.Context()), event, outcome, s.clientIP(r))
	if err != nil {
		logger.Warn("security alert counter failed", "event", event, "err", err)
		return
	}
	if alert.Triggered {
		logger.Error("security_alert",
			"event", event,
			"outcome", outcome,
			"ip", s.clientIP(r),
			"count", alert.Count,
			"threshold", alert.Rule.Threshold,
			"window", alert.Rule.Window.String(),
		)
	}
}

// rateLimited rejects requests over the limiter's budget per path and
// client IP. A nil limiter disables limiting. Limiter failures deny the
// request.
func (s *Server) rateLimited(limiter *ratelimit.FixedWindowLimiter, msg string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.URL.Path + "|" + s.clientIP(r)
			decision, err := limiter.Allow(r.Context(), key)
			if err != nil {
				slog.Error("rate limiter failed", "path", r.URL.Path, "err", err)
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			if !decision.Allowed {
				s.audit(r, "shop.ratelimit", "rate_limited")
				w.Header().Set("Retry-After", retryAfterSeconds(decision.RetryAfter))
				writeError(w, http.StatusTooManyRequests, msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

type claimsContextKey struct{}

func withClaims(ctx context.Context, claims usertoken.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

func claimsFromContext(ctx context.Context) (usertoken.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(usertoken.Claims)
	return claims, ok
}
