package middleware

import (
	"bytes"
	"fmt"
	"maps"
	"net/http"

	"github.com/nkiryanov/refarch/internal/handlers/render"
	"github.com/nkiryanov/refarch/internal/handlers/userctx"
	"github.com/nkiryanov/refarch/internal/models"
)

// Paths served without authentication in any mode
var publicPaths = map[string]struct{}{
	"/actuator/info":             {},
	"/actuator/health":           {},
	"/actuator/health/liveness":  {},
	"/actuator/health/readiness": {},
	"/actuator/metrics":          {},
	"/auth/login":                {},
	"/auth/refresh":              {},
	"/auth/logout":               {},
}

// Public only for the given method
var publicMethodPaths = map[string]struct{}{
	http.MethodGet + " /settings": {},
}

const bypassUsername = "admin"

type securityGate interface {
	IsFederated() bool
}

type federatedAuthenticator interface {
	Authenticate(r *http.Request) (models.Principal, error)
}

type authLogger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

// IsPublic reports whether request is served without principal
func IsPublic(r *http.Request) bool {
	if _, ok := publicPaths[r.URL.Path]; ok {
		return true
	}
	_, ok := publicMethodPaths[r.Method+" "+r.URL.Path]
	return ok
}

// Principal attached to every request when SSO is off
func BypassPrincipal() models.Principal {
	return models.Principal{
		Username:    bypassUsername,
		Authorities: []string{string(models.RoleAdmin), string(models.RoleUser)},
	}
}

// Authenticate attaches principal to request according to current gate mode
// Local bypass: synthetic admin principal, request is served once more if it ended with unflushed 401
// Federated: principal comes from identity provider token, 401 otherwise
func Authenticate(gate securityGate, federated federatedAuthenticator, l authLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					l.Error("Panic while serving authenticated request", "method", r.Method, "uri", r.RequestURI, "panic", fmt.Sprint(v))
					panic(v)
				}
			}()

			if IsPublic(r) {
				next.ServeHTTP(w, r)
				return
			}

			if !gate.IsFederated() {
				serveBypass(next, w, r)
				return
			}

			ctx := r.Context()
			if p, ok := userctx.FromContext(ctx); ok && p.Username == bypassUsername {
				ctx = userctx.Clear(ctx)
			}
			r = r.WithContext(ctx)

			principal, err := federated.Authenticate(r)
			if err != nil {
				l.Debug("Federated authentication failed", "uri", r.RequestURI, "error", err)
				render.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(userctx.New(ctx, principal)))
		})
	}
}

func serveBypass(next http.Handler, w http.ResponseWriter, r *http.Request) {
	bw := newBufferedWriter(w)
	next.ServeHTTP(bw, r.WithContext(userctx.New(r.Context(), BypassPrincipal())))

	if bw.status == http.StatusUnauthorized && !bw.flushed {
		bw = newBufferedWriter(w)
		next.ServeHTTP(bw, r.WithContext(userctx.New(r.Context(), BypassPrincipal())))
	}

	bw.commit()
}

// RequireAnyRole rejects requests without principal (401) or without any of roles (403)
func RequireAnyRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := userctx.FromContext(r.Context())
			if !ok {
				render.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if !p.HasAnyRole(roles...) {
				render.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Holds response until commit, so it may be dropped and served again
// After Flush everything goes straight to the client
type bufferedWriter struct {
	w           http.ResponseWriter
	header      http.Header
	buf         bytes.Buffer
	status      int
	wroteHeader bool
	flushed     bool
}

func newBufferedWriter(w http.ResponseWriter) *bufferedWriter {
	return &bufferedWriter{
		w:      w,
		header: w.Header().Clone(),
		status: http.StatusOK,
	}
}

func (b *bufferedWriter) Header() http.Header {
	if b.flushed {
		return b.w.Header()
	}
	return b.header
}

func (b *bufferedWriter) WriteHeader(code int) {
	if b.wroteHeader {
		return
	}
	b.wroteHeader = true
	b.status = code
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if !b.wroteHeader {
		b.WriteHeader(http.StatusOK)
	}
	if b.flushed {
		return b.w.Write(p)
	}
	return b.buf.Write(p)
}

func (b *bufferedWriter) Flush() {
	if !b.flushed {
		b.commit()
	}
	if f, ok := b.w.(http.Flusher); ok {
		f.Flush()
	}
}

// Send buffered response to client
func (b *bufferedWriter) commit() {
	if b.flushed {
		return
	}
	b.flushed = true
	b.wroteHeader = true

	dst := b.w.Header()
	clear(dst)
	maps.Copy(dst, b.header)

	b.w.WriteHeader(b.status)
	if b.buf.Len() > 0 {
		_, _ = b.w.Write(b.buf.Bytes())
	}
	b.buf.Reset()
}
