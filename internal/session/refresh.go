package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nosdesk/collab-core/internal/errs"
	"github.com/nosdesk/collab-core/internal/models"
	"github.com/nosdesk/collab-core/internal/repository"
)

// Refresh rotates the refresh token named by plaintext into a fresh
// access/refresh pair. Presenting an already-revoked refresh token is
// treated as theft evidence: every session belonging to the token's user
// is revoked, and the presented token is rejected.
func (m *Manager) Refresh(ctx context.Context, plaintext string, dev DeviceInfo) (*IssuedPair, error) {
	hash := hashRefreshToken(plaintext)

	stored, err := m.repo.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errs.New(errs.AuthError, "session: unknown refresh token")
		}
		return nil, errs.Wrap(errs.StorageError, "session: lookup refresh token", err)
	}

	if stored.RevokedAt != nil {
		logx.WithContext(ctx).Errorf("session: reuse of revoked refresh token detected for user %s, revoking all sessions", stored.UserID)
		if revokeErr := m.RevokeAllForUser(ctx, stored.UserID); revokeErr != nil {
			logx.WithContext(ctx).Errorf("session: cascade revoke after reuse detection failed: %v", revokeErr)
		}
		return nil, errs.New(errs.AuthError, "session: refresh token reuse detected, all sessions revoked")
	}

	if time.Now().UTC().After(stored.ExpiresAt) {
		return nil, errs.New(errs.AuthError, "session: refresh token expired")
	}

	sess, err := m.repo.Get(ctx, stored.SessionID)
	if err != nil {
		return nil, errs.Wrap(errs.StorageError, "session: lookup session for refresh", err)
	}
	if sess.RevokedAt != nil {
		return nil, errs.New(errs.AuthError, "session: session already revoked")
	}

	user, err := m.users.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, errs.Wrap(errs.StorageError, "session: lookup user for refresh", err)
	}

	// Rotate: the old token is revoked before the new pair is ever returned
	// to the caller, so a retried/duplicated request can never present it
	// again as anything but a reuse.
	if err := m.repo.RevokeRefreshToken(ctx, stored.ID); err != nil {
		return nil, errs.Wrap(errs.StorageError, "session: revoke old refresh token", err)
	}

	return m.reissue(ctx, sess, user, dev)
}

// reissue mints a fresh access token and refresh token for an existing,
// still-valid session, without touching sessions.is_current (unlike
// IssueSession, which is only for brand-new logins).
func (m *Manager) reissue(ctx context.Context, sess *models.Session, user *models.User, dev DeviceInfo) (*IssuedPair, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(m.cfg.AccessTokenTTL)

	access, err := m.signAccessToken(user.ID, user.Role, sess.ID, now, expiresAt)
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
		UserID:    user.ID,
		SessionID: sess.ID,
		ExpiresAt: now.Add(m.cfg.RefreshTokenTTL),
		CreatedAt: now,
	}); err != nil {
		return nil, errs.Wrap(errs.StorageError, "session: store rotated refresh token", err)
	}

	m.maybeTouchLastActive(ctx, sess.ID)

	return &IssuedPair{AccessToken: access, RefreshToken: refreshPlain, Session: *sess, ExpiresAt: expiresAt}, nil
}
