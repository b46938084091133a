package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nosdesk/collab-core/internal/credential"
	"github.com/nosdesk/collab-core/internal/errs"
	"github.com/nosdesk/collab-core/internal/models"
	"github.com/nosdesk/collab-core/internal/session"
)

// resetTokenTTL bounds how long a password-reset link stays valid.
const resetTokenTTL = time.Hour

type PasswordResetRequestLogic struct {
	logx.Logger
	ctx    context.Context
	users  Users
	tokens ResetTokens
}

func NewPasswordResetRequestLogic(ctx context.Context, users Users, tokens ResetTokens) *PasswordResetRequestLogic {
	return &PasswordResetRequestLogic{Logger: logx.WithContext(ctx), ctx: ctx, users: users, tokens: tokens}
}

// PasswordResetRequest issues an opaque one-shot reset token for email, if
// that address belongs to a user. It reports success unconditionally to
// the caller regardless of whether the address matched, so the endpoint
// cannot be used to enumerate registered emails; the plaintext token is
// returned here only so the handler/mailer can deliver it out-of-band.
func (l *PasswordResetRequestLogic) PasswordResetRequest(email string) (plaintext string, err error) {
	user, err := l.users.GetByEmail(l.ctx, email)
	if err != nil {
		l.Logger.Infof("auth: password reset requested for unknown address")
		return "", nil
	}

	plaintext, hash, err := generateResetToken()
	if err != nil {
		return "", err
	}
	if err := l.tokens.Create(l.ctx, models.ResetToken{
		TokenHash: hash,
		UserID:    user.ID,
		Kind:      models.ResetKindPassword,
		ExpiresAt: time.Now().UTC().Add(resetTokenTTL),
	}); err != nil {
		return "", errs.Wrap(errs.StorageError, "auth: store reset token", err)
	}
	return plaintext, nil
}

func generateResetToken() (plaintext, hash string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", errs.Wrap(errs.StorageError, "auth: generate reset token", err)
	}
	plaintext = base64.RawURLEncoding.EncodeToString(raw)
	sum := sha256.Sum256([]byte(plaintext))
	hash = base64.RawURLEncoding.EncodeToString(sum[:])
	return plaintext, hash, nil
}

type PasswordResetCompleteLogic struct {
	logx.Logger
	ctx      context.Context
	users    Users
	tokens   ResetTokens
	sessions *session.Manager
}

func NewPasswordResetCompleteLogic(ctx context.Context, users Users, tokens ResetTokens, sessions *session.Manager) *PasswordResetCompleteLogic {
	return &PasswordResetCompleteLogic{Logger: logx.WithContext(ctx), ctx: ctx, users: users, tokens: tokens, sessions: sessions}
}

// PasswordResetComplete redeems a reset token, hashes the new password
// into the user's local identity slot, and revokes every outstanding
// session for that user since none of them were issued against the new
// password_changed_at.
func (l *PasswordResetCompleteLogic) PasswordResetComplete(token, newPassword string) error {
	sum := sha256.Sum256([]byte(token))
	hash := base64.RawURLEncoding.EncodeToString(sum[:])

	rt, err := l.tokens.GetByHash(l.ctx, hash)
	if err != nil {
		return errs.New(errs.AuthError, "auth: invalid or expired reset token")
	}
	if rt.UsedAt != nil || time.Now().UTC().After(rt.ExpiresAt) {
		return errs.New(errs.AuthError, "auth: invalid or expired reset token")
	}
	if rt.Kind != models.ResetKindPassword {
		return errs.New(errs.AuthError, "auth: invalid or expired reset token")
	}

	consumed, err := l.tokens.Consume(l.ctx, hash)
	if err != nil {
		return errs.Wrap(errs.StorageError, "auth: consume reset token", err)
	}
	if !consumed {
		return errs.New(errs.AuthError, "auth: invalid or expired reset token")
	}

	if err := l.setNewPassword(rt.UserID, newPassword); err != nil {
		return err
	}

	if err := l.users.TouchPasswordChanged(l.ctx, rt.UserID); err != nil {
		return errs.Wrap(errs.StorageError, "auth: touch password changed", err)
	}
	return l.sessions.RevokeAllForUser(l.ctx, rt.UserID)
}

func (l *PasswordResetCompleteLogic) setNewPassword(userID uuid.UUID, newPassword string) error {
	hash, err := credential.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := l.users.SetLocalPasswordHash(l.ctx, userID, hash); err != nil {
		return errs.Wrap(errs.StorageError, "auth: set new password hash", err)
	}
	return nil
}
