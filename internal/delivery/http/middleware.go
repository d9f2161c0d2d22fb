package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ezlevup/supportdesk/internal/service"
	"github.com/ezlevup/supportdesk/pkg/logger"
)

type contextKey string

const operatorContextKey contextKey = "operator"

// RequireOperator validates the bearer token and rejects callers that
// are not online-capable operators. The authenticated user is stored
// on the request context for handlers that need it.
func RequireOperator(users service.UserService, l logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			user, err := users.ValidateToken(r.Context(), token)
			if err != nil {
				l.Debugf(r.Context(), "token rejected: %v", err)
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if !user.IsOperator() {
				writeAuthError(w, http.StatusForbidden, "operator access required")
				return
			}

			ctx := context.WithValue(r.Context(), operatorContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": message,
		"code":  statusCode,
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequestLogger logs method, path, status and latency for every request.
func RequestLogger(l logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			l.Infof(r.Context(), "%s %s -> %d (%s)", r.Method, r.URL.Path, sw.status, time.Since(start))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
