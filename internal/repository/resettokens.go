package repository

import (
	"context"

	"github.com/nosdesk/collab-core/internal/models"
)

const (
	insertResetTokenQuery = `
		INSERT INTO reset_tokens (token_hash, user_id, kind, expires_at, metadata, created_at)
		VALUES (:token_hash, :user_id, :kind, :expires_at, :metadata, now())`

	selectResetTokenQuery = `
		SELECT token_hash, user_id, kind, expires_at, used_at, metadata, created_at
		FROM reset_tokens WHERE token_hash = $1`

	consumeResetTokenQuery = `
		UPDATE reset_tokens SET used_at = now() WHERE token_hash = $1 AND used_at IS NULL`
)

// ResetTokenRepository persists the password-reset and MFA-reset tokens
// the Credential Store's out-of-band recovery flows hand out.
type ResetTokenRepository struct {
	*BaseRepository
}

func NewResetTokenRepository(base *BaseRepository) *ResetTokenRepository {
	return &ResetTokenRepository{BaseRepository: base}
}

func (r *ResetTokenRepository) Create(ctx context.Context, t models.ResetToken) error {
	_, err := r.NamedExec(ctx, insertResetTokenQuery, t)
	return err
}

func (r *ResetTokenRepository) GetByHash(ctx context.Context, hash string) (*models.ResetToken, error) {
	var t models.ResetToken
	if err := r.Get(ctx, &t, selectResetTokenQuery, hash); err != nil {
		return nil, err
	}
	return &t, nil
}

// Consume atomically marks one reset token used, returning false if it
// was already consumed (or never existed).
func (r *ResetTokenRepository) Consume(ctx context.Context, hash string) (bool, error) {
	res, err := r.Exec(ctx, consumeResetTokenQuery, hash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
