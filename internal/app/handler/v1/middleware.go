package v1

import (
	"context"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"faaxis/internal/app/middleware"
	"faaxis/internal/app/model/domain"
)

type principalKey struct{}

// principal is the caller resolved from a session cookie or a token. Session
// is nil for token callers.
type principal struct {
	User    *domain.User
	Session *domain.Session
}

// isAdmin is true only for admin users holding a session from the admin
// step-up flow.
func (p *principal) isAdmin() bool {
	return p != nil && p.Session != nil && p.Session.IsAdmin && p.User.IsAdmin
}

func principalFrom(ctx context.Context) *principal {
	p, _ := ctx.Value(principalKey{}).(*principal)
	return p
}

// authenticate resolves the caller, preferring the session cookie over a
// bearer token or token cookie. Anonymous requests pass through.
func (h *AuthHandler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if sid := h.sessionID(r); sid != "" {
			session, user, err := h.authService.CurrentSession(ctx, sid)
			if err != nil {
				h.renderServiceError(w, r, err)
				return
			}
			if user != nil {
				next.ServeHTTP(w, r.WithContext(h.withPrincipal(ctx, &principal{User: user, Session: session})))
				return
			}
		}

		if token := h.bearerToken(r); token != "" {
			user, err := h.authService.UserFromToken(ctx, token)
			if err == nil {
				next.ServeHTTP(w, r.WithContext(h.withPrincipal(ctx, &principal{User: user})))
				return
			}
			h.logger.WithFields(logrus.Fields{
				"error": err.Error(),
			}).Debug("Ignoring invalid auth token")
		}

		next.ServeHTTP(w, r)
	})
}

func (h *AuthHandler) withPrincipal(ctx context.Context, p *principal) context.Context {
	middleware.SetUserID(ctx, p.User.ID)
	return context.WithValue(ctx, principalKey{}, p)
}

// requireAuth middleware for protected routes
func (h *AuthHandler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if principalFrom(r.Context()) == nil {
			h.renderError(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *AuthHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := principalFrom(r.Context())
		if p == nil {
			h.renderError(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}
		if !p.isAdmin() {
			h.renderError(w, r, http.StatusForbidden, "forbidden", "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *AuthHandler) bearerToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		scheme, token, ok := strings.Cut(authHeader, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}

	if c, err := r.Cookie(h.cookies.TokenName); err == nil {
		return c.Value
	}
	return ""
}
