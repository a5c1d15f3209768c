package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	errors "github.com/frahmantamala/tonpay/internal"
	"github.com/frahmantamala/tonpay/internal/transport"
)

// WebhookAuth rejects webhook deliveries that do not carry the shared bearer token.
func WebhookAuth(token string, logger *slog.Logger) func(http.Handler) http.Handler {
	expected := []byte(token)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := []byte(transport.BearerToken(r))
			if len(expected) == 0 || subtle.ConstantTimeCompare(presented, expected) != 1 {
				logger.Warn("webhook rejected: invalid token",
					"remote_addr", r.RemoteAddr,
					"request_id", requestIDFrom(r))

				status, body := errors.ErrInvalidWebhookToken.ToHTTPResponse()
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				_ = json.NewEncoder(w).Encode(body)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
