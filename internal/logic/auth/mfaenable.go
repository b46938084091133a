package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nosdesk/collab-core/internal/credential"
	"github.com/nosdesk/collab-core/internal/errs"
)

type MFAEnableLogic struct {
	logx.Logger
	ctx       context.Context
	users     Users
	masterKey *credential.MasterKey
}

func NewMFAEnableLogic(ctx context.Context, users Users, masterKey *credential.MasterKey) *MFAEnableLogic {
	return &MFAEnableLogic{Logger: logx.WithContext(ctx), ctx: ctx, users: users, masterKey: masterKey}
}

// MFAEnable checks one live TOTP code against the already-confirmed secret
// and, on success, (re)generates the user's backup-code set.
func (l *MFAEnableLogic) MFAEnable(userID uuid.UUID, code string) ([]string, error) {
	user, err := l.users.GetByID(l.ctx, userID)
	if err != nil {
		return nil, errs.Wrap(errs.StorageError, "auth: lookup user", err)
	}
	if !user.MFAEnabled || user.EncryptedTOTPSecret == nil {
		return nil, errs.New(errs.MfaError, "auth: mfa not verified")
	}

	secret, err := l.masterKey.Decrypt(*user.EncryptedTOTPSecret)
	if err != nil {
		return nil, errs.Wrap(errs.CryptoError, "auth: decrypt totp secret", err)
	}
	defer secret.Zero()

	if !credential.VerifyTOTP(secret.String(), code) {
		return nil, errs.New(errs.MfaError, "auth: invalid mfa code")
	}

	plaintexts, rows, err := credential.GenerateBackupCodes(userID)
	if err != nil {
		return nil, err
	}
	if err := l.users.ReplaceBackupCodes(l.ctx, userID, rows); err != nil {
		return nil, errs.Wrap(errs.StorageError, "auth: store backup codes", err)
	}
	return plaintexts, nil
}
