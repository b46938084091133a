package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nosdesk/collab-core/internal/models"
)

const (
	selectUserByIDQuery = `
		SELECT id, display_name, email, role, encrypted_totp_secret, mfa_enabled,
		       password_changed_at, created_at, updated_at
		FROM users WHERE id = $1`

	selectUserByEmailQuery = `
		SELECT id, display_name, email, role, encrypted_totp_secret, mfa_enabled,
		       password_changed_at, created_at, updated_at
		FROM users WHERE email = $1`

	selectIdentityByExternalQuery = `
		SELECT id, user_id, provider_type, external_id, password_hash, metadata, created_at
		FROM auth_identities WHERE provider_type = $1 AND external_id = $2`

	updateUserMFAQuery = `
		UPDATE users SET encrypted_totp_secret = $2, mfa_enabled = $3, updated_at = now()
		WHERE id = $1`

	touchPasswordChangedQuery = `
		UPDATE users SET password_changed_at = now(), updated_at = now() WHERE id = $1`

	updateLocalPasswordHashQuery = `
		UPDATE auth_identities SET password_hash = $2
		WHERE user_id = $1 AND provider_type = 'local'`

	insertBackupCodeQuery = `
		INSERT INTO backup_codes (id, user_id, code_hash, created_at)
		VALUES (:id, :user_id, :code_hash, :created_at)`

	deleteBackupCodesForUserQuery = `DELETE FROM backup_codes WHERE user_id = $1`

	selectBackupCodesQuery = `
		SELECT id, user_id, code_hash, consumed_at, created_at
		FROM backup_codes WHERE user_id = $1 AND consumed_at IS NULL`

	consumeBackupCodeQuery = `
		UPDATE backup_codes SET consumed_at = now()
		WHERE id = $1 AND consumed_at IS NULL`
)

// UserRepository is the identity-facing slice of the repository consumed by
// the Credential Store and Session Authority.
type UserRepository struct {
	*BaseRepository
}

func NewUserRepository(base *BaseRepository) *UserRepository {
	return &UserRepository{BaseRepository: base}
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := r.Get(ctx, &u, selectUserByIDQuery, id); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.Get(ctx, &u, selectUserByEmailQuery, email); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetLocalIdentity(ctx context.Context, externalID string) (*models.AuthIdentity, error) {
	var id models.AuthIdentity
	if err := r.Get(ctx, &id, selectIdentityByExternalQuery, models.ProviderLocal, externalID); err != nil {
		return nil, err
	}
	return &id, nil
}

func (r *UserRepository) SetMFA(ctx context.Context, userID uuid.UUID, encryptedSecret *string, enabled bool) error {
	_, err := r.Exec(ctx, updateUserMFAQuery, userID, encryptedSecret, enabled)
	return err
}

// TouchPasswordChanged bumps password_changed_at, which invalidates every
// session issued before this instant.
func (r *UserRepository) TouchPasswordChanged(ctx context.Context, userID uuid.UUID) error {
	_, err := r.Exec(ctx, touchPasswordChangedQuery, userID)
	return err
}

// SetLocalPasswordHash replaces the bcrypt hash on a user's local identity,
// for password-reset completion.
func (r *UserRepository) SetLocalPasswordHash(ctx context.Context, userID uuid.UUID, hash string) error {
	_, err := r.Exec(ctx, updateLocalPasswordHashQuery, userID, hash)
	return err
}

// ReplaceBackupCodes atomically drops every existing backup code for the
// user, consumed or not, and inserts the freshly generated set, for MFA
// enable/regenerate.
func (r *UserRepository) ReplaceBackupCodes(ctx context.Context, userID uuid.UUID, codes []models.BackupCode) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteBackupCodesForUserQuery, userID); err != nil {
			return err
		}
		for _, c := range codes {
			if _, err := tx.NamedExecContext(ctx, insertBackupCodeQuery, c); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *UserRepository) ListUnconsumedBackupCodes(ctx context.Context, userID uuid.UUID) ([]models.BackupCode, error) {
	var codes []models.BackupCode
	if err := r.Select(ctx, &codes, selectBackupCodesQuery, userID); err != nil {
		return nil, err
	}
	return codes, nil
}

// ConsumeBackupCode atomically marks one backup code consumed, returning
// false if it was already used.
func (r *UserRepository) ConsumeBackupCode(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.Exec(ctx, consumeBackupCodeQuery, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
