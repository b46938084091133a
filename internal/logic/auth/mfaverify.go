package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nosdesk/collab-core/internal/credential"
	"github.com/nosdesk/collab-core/internal/errs"
)

type MFAVerifyLogic struct {
	logx.Logger
	ctx       context.Context
	users     Users
	masterKey *credential.MasterKey
}

func NewMFAVerifyLogic(ctx context.Context, users Users, masterKey *credential.MasterKey) *MFAVerifyLogic {
	return &MFAVerifyLogic{Logger: logx.WithContext(ctx), ctx: ctx, users: users, masterKey: masterKey}
}

// MFAVerify confirms the pending secret MFASetup stored by checking one
// live TOTP code, then flips mfa_enabled on.
func (l *MFAVerifyLogic) MFAVerify(userID uuid.UUID, code string) error {
	user, err := l.users.GetByID(l.ctx, userID)
	if err != nil {
		return errs.Wrap(errs.StorageError, "auth: lookup user", err)
	}
	if user.EncryptedTOTPSecret == nil {
		return errs.New(errs.MfaError, "auth: no pending mfa setup")
	}

	secret, err := l.masterKey.Decrypt(*user.EncryptedTOTPSecret)
	if err != nil {
		return errs.Wrap(errs.CryptoError, "auth: decrypt totp secret", err)
	}
	defer secret.Zero()

	if !credential.VerifyTOTP(secret.String(), code) {
		return errs.New(errs.MfaError, "auth: invalid mfa code")
	}

	if err := l.users.SetMFA(l.ctx, userID, user.EncryptedTOTPSecret, true); err != nil {
		return errs.Wrap(errs.StorageError, "auth: enable mfa", err)
	}
	return nil
}
