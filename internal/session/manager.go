package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nosdesk/collab-core/internal/errs"
	"github.com/nosdesk/collab-core/internal/models"
	"github.com/nosdesk/collab-core/internal/repository"
)

// Store is the slice of SessionRepository the Session Authority needs.
// Declared here (rather than depending on *repository.SessionRepository
// directly) so tests can substitute an in-memory fake; the real
// repository.SessionRepository satisfies it without any glue.
type Store interface {
	CreateSession(ctx context.Context, s models.Session) error
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
	TouchLastActive(ctx context.Context, id uuid.UUID, at time.Time) error
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
	InsertRefreshToken(ctx context.Context, t models.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id uuid.UUID) error
}

// Config mirrors the environment-sourced knobs that govern token lifetimes.
type Config struct {
	JWTSecret             string
	AccessTokenTTL        time.Duration // JWT_EXPIRY_HOURS
	RefreshTokenTTL       time.Duration
	SessionInactivityTTL  time.Duration // SESSION_TIMEOUT_MINUTES
}

// UserLookup is the slice of the user repository the Session Authority
// needs: reading password_changed_at for the session-validity check.
// Declared as an interface so tests can fake it without a DB.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Manager is the Session Authority. It issues, validates, and rotates
// tokens, and tracks the last-active write throttle entirely in-process.
type Manager struct {
	cfg   Config
	repo  Store
	users UserLookup
	cache Cache

	touchMu sync.Mutex
	touched map[uuid.UUID]time.Time
}

func NewManager(cfg Config, repo Store, users UserLookup, cache Cache) *Manager {
	return &Manager{
		cfg:     cfg,
		repo:    repo,
		users:   users,
		cache:   cache,
		touched: make(map[uuid.UUID]time.Time),
	}
}

// IssuedPair is what a successful login/refresh returns.
type IssuedPair struct {
	AccessToken  string
	RefreshToken string
	Session      models.Session
	ExpiresAt    time.Time
}

// DeviceInfo carries the request metadata stamped onto the session row.
type DeviceInfo struct {
	IP          string
	UserAgent   string
	DeviceLabel string
}

// IssueSession creates a brand-new session + access/refresh pair for a
// user who has just completed authentication (password, or password+MFA).
// Creating a new is_current session clears any previous one for the
// user; SessionRepository.CreateSession enforces that atomically.
func (m *Manager) IssueSession(ctx context.Context, userID uuid.UUID, role models.Role, dev DeviceInfo) (*IssuedPair, error) {
	now := time.Now().UTC()
	sessionID := uuid.New()
	expiresAt := now.Add(m.cfg.AccessTokenTTL)

	sess := models.Session{
		ID:          sessionID,
		UserID:      userID,
		IssuedAt:    now,
		ExpiresAt:   now.Add(m.cfg.SessionInactivityTTL),
		LastActive:  now,
		IP:          dev.IP,
		UserAgent:   dev.UserAgent,
		DeviceLabel: dev.DeviceLabel,
		IsCurrent:   true,
	}
	if err := m.repo.CreateSession(ctx, sess); err != nil {
		return nil, errs.Wrap(errs.StorageError, "session: create session", err)
	}

	access, err := m.signAccessToken(userID, role, sessionID, now, expiresAt)
	if err != nil {
		return nil, err
	}

	refreshPlain, refreshHash, err := generateOpaqueToken()
	if err != nil {
		return nil, err
	}
	if err := m.repo.InsertRefreshToken(ctx, models.RefreshToken{
		ID:        uuid.New(),
		TokenHash: refreshHash,
		UserID:    userID,
		SessionID: sessionID,
		ExpiresAt: now.Add(m.cfg.RefreshTokenTTL),
		CreatedAt: now,
	}); err != nil {
		return nil, errs.Wrap(errs.StorageError, "session: store refresh token", err)
	}

	return &IssuedPair{AccessToken: access, RefreshToken: refreshPlain, Session: sess, ExpiresAt: expiresAt}, nil
}

func (m *Manager) signAccessToken(userID uuid.UUID, role models.Role, sessionID uuid.UUID, issuedAt, expiresAt time.Time) (string, error) {
	claims := newAccessClaims(userID, role, sessionID, issuedAt, expiresAt)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.cfg.JWTSecret))
	if err != nil {
		return "", errs.Wrap(errs.StorageError, "session: sign access token", err)
	}
	return signed, nil
}

// generateOpaqueToken produces a 256-bit CSPRNG refresh token and its
// SHA-256 hash for storage.
func generateOpaqueToken() (plaintext, hash string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", errs.Wrap(errs.StorageError, "session: generate refresh token", err)
	}
	plaintext = base64.RawURLEncoding.EncodeToString(raw)
	hash = hashRefreshToken(plaintext)
	return plaintext, hash, nil
}

// hashRefreshToken derives the lookup key stored in refresh_tokens.token_hash.
// The plaintext itself never touches the database.
func hashRefreshToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ValidateAccess verifies the token's signature and expiry, looks up its
// session id, confirms the session exists and was issued at-or-after the
// user's password_changed_at, then throttle-updates last_active.
func (m *Manager) ValidateAccess(ctx context.Context, tokenString string) (*AccessClaims, error) {
	var claims AccessClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(m.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, errs.New(errs.AuthError, "session: invalid access token")
	}

	if revoked, err := m.cache.IsRevoked(ctx, claims.SessionID); err == nil && revoked {
		return nil, errs.New(errs.AuthError, "session: revoked")
	}

	sess, err := m.repo.Get(ctx, claims.SessionID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errs.New(errs.AuthError, "session: unknown session")
		}
		return nil, errs.Wrap(errs.StorageError, "session: lookup session", err)
	}
	if sess.RevokedAt != nil {
		return nil, errs.New(errs.AuthError, "session: revoked")
	}
	if time.Now().UTC().After(sess.ExpiresAt) {
		return nil, errs.New(errs.AuthError, "session: expired")
	}

	user, err := m.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, errs.Wrap(errs.StorageError, "session: lookup user", err)
	}
	if sess.IssuedAt.Before(user.PasswordChangedAt) {
		return nil, errs.New(errs.AuthError, "session: superseded by password change")
	}

	m.maybeTouchLastActive(ctx, sess.ID)

	return &claims, nil
}

func (m *Manager) maybeTouchLastActive(ctx context.Context, sessionID uuid.UUID) {
	now := time.Now().UTC()

	m.touchMu.Lock()
	last, ok := m.touched[sessionID]
	if ok && now.Sub(last) < lastActiveThrottle {
		m.touchMu.Unlock()
		return
	}
	m.touched[sessionID] = now
	m.touchMu.Unlock()

	if err := m.repo.TouchLastActive(ctx, sessionID, now); err != nil {
		logx.WithContext(ctx).Errorf("session: touch last_active failed: %v", err)
	}
}

// Logout revokes one session and marks it revoked in the cache. Its
// refresh tokens are left as they are; Refresh rejects them because their
// session is revoked.
func (m *Manager) Logout(ctx context.Context, sessionID uuid.UUID) error {
	if err := m.repo.Revoke(ctx, sessionID); err != nil {
		return errs.Wrap(errs.StorageError, "session: revoke", err)
	}
	if err := m.cache.MarkRevoked(ctx, sessionID); err != nil {
		logx.WithContext(ctx).Errorf("session: cache revoke failed: %v", err)
	}
	return nil
}

// RevokeAllForUser cascades a revoke across every session for a user
// (password change, refresh-token reuse detection).
func (m *Manager) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	return m.repo.RevokeAllForUser(ctx, userID)
}
