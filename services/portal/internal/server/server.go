package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"eduportal/internal/ratelimit"
	"eduportal/internal/util"
	"eduportal/pkg/domain"
	"eduportal/pkg/pdfdata"
	"eduportal/pkg/session"
	"eduportal/pkg/store"
	"eduportal/services/portal/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                        *app.App
	RedisAddr                  string
	RedisPassword              string
	RedisPrefix                string
	LoginRateLimitPerMinute    int
	RegisterRateLimitPerMinute int
	TrustedProxyCIDRs          []string
	CORSAllowedOrigins         []string
}

// Server exposes the portal HTTP API.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	trustedProxies  *util.TrustedProxies
	corsOrigins     []string
	loginLimiter    *ratelimit.FixedWindowLimiter
	registerLimiter *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured. Without a Redis address
// the auth endpoints are not rate limited.
func New(cfg Config) (*Server, error) {
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		trustedProxies: trusted,
		corsOrigins:    cfg.CORSAllowedOrigins,
	}
	if cfg.RedisAddr != "" {
		prefix := cfg.RedisPrefix
		if prefix == "" {
			prefix = "eduportal"
		}
		newLimiter := func(name string, limit, fallback int) (*ratelimit.FixedWindowLimiter, error) {
			if limit <= 0 {
				limit = fallback
			}
			limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix+":ratelimit:"+name, limit, time.Minute)
			if err != nil {
				return nil, fmt.Errorf("init %s limiter: %w", name, err)
			}
			return limiter, nil
		}
		if s.loginLimiter, err = newLimiter("login", cfg.LoginRateLimitPerMinute, 10); err != nil {
			return nil, err
		}
		if s.registerLimiter, err = newLimiter("register", cfg.RegisterRateLimitPerMinute, 5); err != nil {
			return nil, err
		}
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.SecureHeaders(s.trustedProxies)(util.CORS(s.corsOrigins)(s.mux))))
}

// Close releases the limiter connections.
func (s *Server) Close() error {
	var errs []error
	for _, l := range []*ratelimit.FixedWindowLimiter{s.loginLimiter, s.registerLimiter} {
		if l != nil {
			errs = append(errs, l.Close())
		}
	}
	return errors.Join(errs...)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/register", s.handleRegister)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/users/me", s.authenticated(s.handleMe))

	// catalog & feedback
	s.mux.Handle("/api/books", s.authenticated(s.handleBooks))
	s.mux.Handle("/api/books/", s.authenticated(s.handleBookByID))
	s.mux.Handle("/api/reviews", s.authenticated(s.handleReviews))

	// admin
	s.mux.Handle("/api/admin/users", s.adminOnly(s.handleAdminUsers))
	s.mux.Handle("/api/admin/login-logs", s.adminOnly(s.handleAdminLoginLogs))
	s.mux.Handle("/api/admin/activity", s.adminOnly(s.handleAdminActivity))
	s.mux.Handle("/api/admin/activity/stream", s.adminOnly(s.handleAdminActivityStream))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if user.Role != domain.RoleAdmin {
			s.audit(r, "portal.admin.authorize", "fail", "user_id", user.ID, "reason", "forbidden")
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		s.audit(r, "portal.token.verify", "fail", "reason", "missing_token")
		return domain.User{}, false
	}
	user, err := s.app.Authenticate(r.Context(), token)
	if err != nil {
		s.audit(r, "portal.token.verify", "fail", "reason", "invalid_token")
		return domain.User{}, false
	}
	return user, true
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeList[T any](w http.ResponseWriter, items []T) {
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

// writeAppError maps domain failures onto HTTP statuses. User-facing
// messages pass through; anything unexpected becomes a generic 500.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, credentialMessage(err))
	case errors.Is(err, session.ErrUseAdminLogin):
		writeError(w, http.StatusBadRequest, session.ErrUseAdminLogin.Error())
	case errors.Is(err, store.ErrDuplicateUsername):
		writeError(w, http.StatusConflict, store.ErrDuplicateUsername.Error())
	case errors.Is(err, store.ErrDuplicateReview):
		writeError(w, http.StatusConflict, store.ErrDuplicateReview.Error())
	case errors.Is(err, app.ErrBookNotFound):
		writeError(w, http.StatusNotFound, app.ErrBookNotFound.Error())
	case errors.Is(err, pdfdata.ErrPlaceholder):
		writeError(w, http.StatusNotFound, pdfdata.ErrPlaceholder.Error())
	case errors.Is(err, pdfdata.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, pdfdata.ErrTooLarge.Error())
	case errors.Is(err, store.ErrInvalidInput), app.IsClientError(err), errors.Is(err, session.ErrUnknownRole):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrStorageFailure):
		writeError(w, http.StatusInsufficientStorage, "Storage is full or unavailable. The change was not saved.")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func credentialMessage(err error) string {
	if errors.Is(err, session.ErrInvalidAdminCredentials) {
		return session.ErrInvalidAdminCredentials.Error()
	}
	return session.ErrInvalidCredentials.Error()
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
}

// allowRate reports whether the request fits the limiter. A nil limiter
// allows everything.
func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	decision := limiter.Allow(r.Context(), r.URL.Path+"|"+s.clientIP(r))
	if decision.Allowed {
		return true
	}
	retry := int(math.Ceil(decision.RetryAfter.Seconds()))
	if retry < 1 {
		retry = 60
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func (s *Server) clientIP(r *http.Request) string {
	return util.ClientIP(r, s.trustedProxies)
}

