// Package session is the Session Authority: it issues, validates, and
// rotates access and refresh tokens, and mints one-shot SSE handshake
// tokens. Access tokens are signed HS256 JWTs carrying a small,
// fixed claim set (subject, role, issued-at, expiry, session id).
package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nosdesk/collab-core/internal/models"
)

// AccessClaims is the JWT claim set: {sub, role, iat, exp, sid}.
type AccessClaims struct {
	jwt.RegisteredClaims
	Role      models.Role `json:"role"`
	SessionID uuid.UUID   `json:"sid"`
}

func newAccessClaims(userID uuid.UUID, role models.Role, sessionID uuid.UUID, issuedAt, expiresAt time.Time) *AccessClaims {
	return &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    "nosdesk-collab-core",
		},
		Role:      role,
		SessionID: sessionID,
	}
}
