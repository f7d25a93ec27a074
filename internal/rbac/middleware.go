package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/toolroom-erp/toolroom/internal/platform/httpx"
)

// Identity headers set by the upstream identity provider.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// Middleware wires role authorization helpers for HTTP handlers.
type Middleware struct {
	Policy *Policy
	Logger *slog.Logger
}

// Identify resolves the acting role from request headers and stores it in context.
// Requests without a recognised role continue without an actor.
func (m Middleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(HeaderActorRole))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		role, ok := ParseRole(raw)
		if !ok {
			if m.Logger != nil {
				m.Logger.Warn("rbac unknown role", slog.String("value", raw))
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "unknown role "+raw)
			return
		}
		actor := Actor{ID: strings.TrimSpace(r.Header.Get(HeaderActorID)), Role: role}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}

// RequireActor rejects requests without an identified actor.
func (m Middleware) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ActorFromContext(r.Context()); !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "acting role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAny ensures the current actor may trigger at least one of the actions.
func (m Middleware) RequireAny(actions ...Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "acting role required")
				return
			}
			for _, a := range actions {
				if m.Policy.Allowed(actor.Role, a) {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "role "+string(actor.Role)+" not permitted")
		})
	}
}
