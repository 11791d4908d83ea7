package gateway

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/carelink/portal-gateway/internal/routing"
	"github.com/carelink/portal-gateway/internal/session"
)

// corsMiddleware handles CORS headers
func (s *Service) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*") // Configure appropriately for production
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		w.Header().Set("Access-Control-Max-Age", "86400")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// securityHeadersMiddleware adds security headers
func (s *Service) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware assigns a request ID and logs requests
func (s *Service) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		recorder := &responseRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(recorder, r)

		s.logger.HTTPRequest(
			requestID,
			r.Method,
			r.URL.Path,
			r.UserAgent(),
			r.RemoteAddr,
			recorder.statusCode,
			time.Since(start).Milliseconds(),
		)
	})
}

// metricsMiddleware records request metrics
func (s *Service) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		recorder := &responseRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(recorder, r)

		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(recorder.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// recoveryMiddleware converts panics into 500 responses and reports them
func (s *Service) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if s.sentryEnabled {
					sentry.CurrentHub().Recover(rec)
				}
				s.logger.WithField("panic", rec).WithField("path", r.URL.Path).Error("Recovered from panic")
				s.writeErrorResponse(w, http.StatusInternalServerError, "internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// gateMiddleware runs the redirect decision engine on page navigation. It
// emits at most one redirect per request; allowed requests fall through to
// the frontend proxy.
func (s *Service) gateMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.ReadSession(r)

		outcome := s.engine.Decide(r.Context(), r.URL.Path, r.URL.Query(), sess.Token)

		redirectDecisionsTotal.WithLabelValues(outcome.Kind.String()).Inc()
		if outcome.Kind != routing.Allow {
			s.audit.RecordDecision(r.Context(), sess.LoginID, r.URL.Path, outcome.Kind.String(), outcome.Reason)
		}

		switch outcome.Kind {
		case routing.RedirectToLogin:
			// A dead token is useless; drop the pair so the client starts clean
			if outcome.Reason == routing.ReasonExpired {
				session.ClearSession(w, s.cfg.Session.SecureCookies)
			}
			http.Redirect(w, r, loginURL(outcome.Reason), http.StatusTemporaryRedirect)

		case routing.RedirectToProfileCreate:
			http.Redirect(w, r, routing.ProfileCreatePath, http.StatusTemporaryRedirect)

		case routing.RedirectToDashboard:
			http.Redirect(w, r, dashboardURL(outcome.View), http.StatusTemporaryRedirect)

		default:
			next.ServeHTTP(w, r)
		}
	})
}

// loginURL builds the login redirect target
func loginURL(reason string) string {
	query := url.Values{}
	query.Set("view", "login")
	if reason != "" {
		query.Set("reason", reason)
	}
	return routing.AuthPath + "?" + query.Encode()
}

// dashboardURL builds the dashboard redirect target
func dashboardURL(view routing.DashboardView) string {
	query := url.Values{}
	query.Set("view", string(view))
	return routing.DashboardPath + "?" + query.Encode()
}

// apiAuthMiddleware requires a live session token on API routes. The token
// may arrive as a bearer header or as the session cookie; it is normalized
// into the Authorization header for the upstream forward.
func (s *Service) apiAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			token = session.ReadSession(r).Token
		}

		if !session.IsValid(token) {
			s.writeErrorResponse(w, http.StatusUnauthorized, "missing or expired session token")
			return
		}

		r.Header.Set("Authorization", "Bearer "+token)
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware applies per-caller rate limiting on API routes
func (s *Service) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		caller := session.ReadSession(r).LoginID
		if caller == "" {
			caller = r.RemoteAddr
		}

		if !s.limiter.Allow(caller) {
			rateLimitedTotal.Inc()
			s.logger.WithLoginID(caller).Warn("Rate limit exceeded")
			s.writeErrorResponse(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from an Authorization header, if present
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// responseRecorder captures the response status code
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
