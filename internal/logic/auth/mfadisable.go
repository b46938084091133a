package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nosdesk/collab-core/internal/credential"
	"github.com/nosdesk/collab-core/internal/errs"
)

type MFADisableLogic struct {
	logx.Logger
	ctx       context.Context
	users     Users
	masterKey *credential.MasterKey
}

func NewMFADisableLogic(ctx context.Context, users Users, masterKey *credential.MasterKey) *MFADisableLogic {
	return &MFADisableLogic{Logger: logx.WithContext(ctx), ctx: ctx, users: users, masterKey: masterKey}
}

// MFADisable requires one final live code before clearing the secret and
// dropping the flag; backup codes are wiped along with it.
func (l *MFADisableLogic) MFADisable(userID uuid.UUID, code string) error {
	user, err := l.users.GetByID(l.ctx, userID)
	if err != nil {
		return errs.Wrap(errs.StorageError, "auth: lookup user", err)
	}
	if !user.MFAEnabled || user.EncryptedTOTPSecret == nil {
		return errs.New(errs.MfaError, "auth: mfa not enabled")
	}

	secret, err := l.masterKey.Decrypt(*user.EncryptedTOTPSecret)
	if err != nil {
		return errs.Wrap(errs.CryptoError, "auth: decrypt totp secret", err)
	}
	defer secret.Zero()

	if !credential.VerifyTOTP(secret.String(), code) {
		return errs.New(errs.MfaError, "auth: invalid mfa code")
	}

	if err := l.users.SetMFA(l.ctx, userID, nil, false); err != nil {
		return errs.Wrap(errs.StorageError, "auth: disable mfa", err)
	}
	if err := l.users.ReplaceBackupCodes(l.ctx, userID, nil); err != nil {
		return errs.Wrap(errs.StorageError, "auth: clear backup codes", err)
	}
	return nil
}
