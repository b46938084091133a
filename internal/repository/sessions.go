package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nosdesk/collab-core/internal/models"
)

const (
	insertSessionQuery = `
		INSERT INTO sessions (id, user_id, issued_at, expires_at, last_active, ip, user_agent, device_label, is_current)
		VALUES (:id, :user_id, :issued_at, :expires_at, :last_active, :ip, :user_agent, :device_label, :is_current)`

	clearCurrentSessionsQuery = `UPDATE sessions SET is_current = false WHERE user_id = $1 AND is_current = true`

	selectSessionQuery = `
		SELECT id, user_id, issued_at, expires_at, last_active, ip, user_agent, device_label, is_current, revoked_at
		FROM sessions WHERE id = $1`

	touchSessionLastActiveQuery = `UPDATE sessions SET last_active = $2 WHERE id = $1`

	revokeSessionQuery = `UPDATE sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`

	revokeAllSessionsForUserQuery = `UPDATE sessions SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL`

	insertRefreshTokenQuery = `
		INSERT INTO refresh_tokens (id, token_hash, user_id, session_id, expires_at, created_at)
		VALUES (:id, :token_hash, :user_id, :session_id, :expires_at, :created_at)`

	selectRefreshTokenByHashQuery = `
		SELECT id, token_hash, user_id, session_id, expires_at, revoked_at, created_at
		FROM refresh_tokens WHERE token_hash = $1`

	revokeRefreshTokenQuery = `UPDATE refresh_tokens SET revoked_at = now() WHERE id = $1`

	revokeAllRefreshTokensForUserQuery = `
		UPDATE refresh_tokens SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL`
)

// SessionRepository persists Session and RefreshToken rows for
// internal/session. Every mutation that affects whether a session is
// valid goes through here so the Session Authority never has to reach
// for raw SQL.
type SessionRepository struct {
	*BaseRepository
}

func NewSessionRepository(base *BaseRepository) *SessionRepository {
	return &SessionRepository{BaseRepository: base}
}

// CreateSession inserts a session and, within the same transaction,
// clears any previous is_current=true row for the user — enforcing at
// most one current session per user.
func (r *SessionRepository) CreateSession(ctx context.Context, s models.Session) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		if s.IsCurrent {
			if _, err := tx.ExecContext(ctx, clearCurrentSessionsQuery, s.UserID); err != nil {
				return err
			}
		}
		_, err := tx.NamedExecContext(ctx, insertSessionQuery, s)
		return err
	})
}

func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var s models.Session
	if err := r.BaseRepository.Get(ctx, &s, selectSessionQuery, id); err != nil {
		return nil, err
	}
	return &s, nil
}

// TouchLastActive is called by the Session Authority at most once per 30s
// per session; the throttling decision itself lives in internal/session,
// this is just the write.
func (r *SessionRepository) TouchLastActive(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.Exec(ctx, touchSessionLastActiveQuery, id, at)
	return err
}

func (r *SessionRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	_, err := r.Exec(ctx, revokeSessionQuery, id)
	return err
}

// RevokeAllForUser cascades a revoke across every session and refresh
// token for a user (password change, refresh-token reuse detection).
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, revokeAllSessionsForUserQuery, userID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, revokeAllRefreshTokensForUserQuery, userID)
		return err
	})
}

func (r *SessionRepository) InsertRefreshToken(ctx context.Context, t models.RefreshToken) error {
	_, err := r.NamedExec(ctx, insertRefreshTokenQuery, t)
	return err
}

func (r *SessionRepository) GetRefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	var t models.RefreshToken
	if err := r.BaseRepository.Get(ctx, &t, selectRefreshTokenByHashQuery, hash); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *SessionRepository) RevokeRefreshToken(ctx context.Context, id uuid.UUID) error {
	_, err := r.Exec(ctx, revokeRefreshTokenQuery, id)
	return err
}
