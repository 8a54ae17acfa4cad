package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"
)

// RecoveryConfig holds recovery middleware configuration
type RecoveryConfig struct {
	Logger     Logger
	StackTrace bool
}

// Recovery creates panic recovery middleware
func Recovery(config *RecoveryConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = &RecoveryConfig{StackTrace: true}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					var stack string
					if config.StackTrace {
						stack = string(debug.Stack())
					}

					if config.Logger != nil {
						config.Logger.Error("panic recovered",
							"error", err,
							"path", r.URL.Path,
							"method", r.Method,
							"stack", stack,
						)
					}

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]interface{}{
						"success": false,
						"error":   "An unexpected error occurred",
						"data":    nil,
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
