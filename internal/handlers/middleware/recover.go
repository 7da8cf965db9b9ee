package middleware

import (
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/nkiryanov/refarch/internal/handlers/render"
)

type errorLogger interface {
	Error(msg string, args ...any)
}

// Recover turns panic into 500 response and reports it to sentry
// Hub is taken from request context, current hub otherwise
func Recover(l errorLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				hub := sentry.GetHubFromContext(r.Context())
				if hub == nil {
					hub = sentry.CurrentHub()
				}
				hub.WithScope(func(scope *sentry.Scope) {
					scope.SetRequest(r)
					hub.RecoverWithContext(r.Context(), rec)
				})

				l.Error("Panic recovered", "method", r.Method, "uri", r.RequestURI, "panic", fmt.Sprint(rec))
				render.Error(w, "Internal server error", http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
