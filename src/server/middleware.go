package server

import (
	"net/http"
	"strings"

	"dailybuy/src/security"

	logger "github.com/sirupsen/logrus"
)

const triggerTokenHeader = "X-Trigger-Token"

// RequireTriggerToken rejects requests whose token does not match hash.
// An empty hash lets every request through.
func RequireTriggerToken(hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if strings.TrimSpace(hash) == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(triggerTokenHeader)
			if token == "" {
				token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			if err := security.VerifyTriggerToken(hash, token); err != nil {
				logger.WithError(err).WithField("path", r.URL.Path).Warn("rejected trigger")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// allowCORS answers preflight requests for the trigger routes.
func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+triggerTokenHeader)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
