// Package middleware is the HTTP boundary the Session Authority, CSRF
// double-submit check, and per-IP rate limiting run at: every request
// crosses these before it reaches a handler.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nosdesk/collab-core/internal/models"
	"github.com/nosdesk/collab-core/internal/session"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxRole
	ctxSessionID
)

const (
	accessCookieName = "access_token"
	csrfCookieName   = "csrf_token"
	csrfHeaderName   = "X-CSRF-Token"
)

// Exported cookie names so internal/handler can set the same cookies this
// package later reads back off incoming requests.
const (
	AccessCookieName  = accessCookieName
	RefreshCookieName = "refresh_token"
	CSRFCookieName    = csrfCookieName
	CSRFHeaderName    = csrfHeaderName
)

// TokenValidator is the narrow slice of session.Manager auth middleware
// needs, so tests can substitute a fake instead of a live Manager.
type TokenValidator interface {
	ValidateAccess(ctx context.Context, tokenString string) (*session.AccessClaims, error)
}

// AuthMiddleware authenticates every request off the access_token cookie
// and injects the resulting claims into the request context. It never
// falls back to an Authorization header: the collaboration core is
// cookie-only by design, matching the handshake and refresh flows.
type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// Required rejects the request with 401 unless access_token is present
// and valid.
func (m *AuthMiddleware) Required(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.authenticate(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(withClaims(r.Context(), claims)))
	}
}

// Optional authenticates when a cookie is present but lets the request
// through unauthenticated otherwise; handlers that behave differently for
// anonymous callers use this instead of Required.
func (m *AuthMiddleware) Optional(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if claims, err := m.authenticate(r); err == nil {
			r = r.WithContext(withClaims(r.Context(), claims))
		}
		next(w, r)
	}
}

func (m *AuthMiddleware) authenticate(r *http.Request) (*session.AccessClaims, error) {
	cookie, err := r.Cookie(accessCookieName)
	if err != nil {
		return nil, err
	}
	claims, err := m.validator.ValidateAccess(r.Context(), cookie.Value)
	if err != nil {
		logx.WithContext(r.Context()).Infof("middleware: auth rejected: %v", err)
		return nil, err
	}
	return claims, nil
}

func withClaims(ctx context.Context, claims *session.AccessClaims) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, claims.Subject)
	ctx = context.WithValue(ctx, ctxRole, claims.Role)
	ctx = context.WithValue(ctx, ctxSessionID, claims.SessionID)
	return ctx
}

// UserIDFromContext returns the authenticated caller's user id. Only
// meaningful downstream of Required, or of Optional when it succeeded.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	raw, ok := ctx.Value(ctxUserID).(string)
	if !ok {
		return uuid.UUID{}, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}

// RoleFromContext returns the authenticated caller's role.
func RoleFromContext(ctx context.Context) (models.Role, bool) {
	role, ok := ctx.Value(ctxRole).(models.Role)
	return role, ok
}

// SessionIDFromContext returns the authenticated caller's session id.
func SessionIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ctxSessionID).(uuid.UUID)
	return id, ok
}
