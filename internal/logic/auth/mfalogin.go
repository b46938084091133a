package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nosdesk/collab-core/internal/credential"
	"github.com/nosdesk/collab-core/internal/errs"
	"github.com/nosdesk/collab-core/internal/models"
	"github.com/nosdesk/collab-core/internal/session"
	"github.com/nosdesk/collab-core/internal/types"
)

type MFALoginLogic struct {
	logx.Logger
	ctx       context.Context
	users     Users
	sessions  *session.Manager
	masterKey *credential.MasterKey
}

func NewMFALoginLogic(ctx context.Context, users Users, sessions *session.Manager, masterKey *credential.MasterKey) *MFALoginLogic {
	return &MFALoginLogic{Logger: logx.WithContext(ctx), ctx: ctx, users: users, sessions: sessions, masterKey: masterKey}
}

// MFALogin re-verifies the password (the client resubmits it alongside the
// TOTP/backup code) and then checks the code against the user's decrypted
// TOTP secret, falling back to an unconsumed backup code.
func (l *MFALoginLogic) MFALogin(req *types.MFALoginRequest, dev session.DeviceInfo) (*types.MFALoginResponse, *session.IssuedPair, error) {
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, nil, errs.New(errs.InvalidInput, "auth: malformed user id")
	}

	user, err := l.users.GetByID(l.ctx, userID)
	if err != nil {
		return nil, nil, errs.New(errs.AuthError, "auth: invalid credentials")
	}
	if user.Email != req.Email {
		return nil, nil, errs.New(errs.AuthError, "auth: invalid credentials")
	}

	identity, err := l.users.GetLocalIdentity(l.ctx, user.Email)
	if err != nil {
		return nil, nil, errs.New(errs.AuthError, "auth: invalid credentials")
	}
	if ok, _ := credential.VerifyPassword(req.Password, identity.PasswordHash); !ok {
		return nil, nil, errs.New(errs.AuthError, "auth: invalid credentials")
	}

	if !user.MFAEnabled || user.EncryptedTOTPSecret == nil {
		return nil, nil, errs.New(errs.MfaError, "auth: mfa not enabled for user")
	}

	backupCodeUsed, remaining, err := l.verifyCode(user, req.MFAToken)
	if err != nil {
		return nil, nil, err
	}

	pair, err := l.sessions.IssueSession(l.ctx, user.ID, user.Role, dev)
	if err != nil {
		return nil, nil, err
	}
	return &types.MFALoginResponse{
		User:                           *toAuthUser(user),
		MFABackupCodeUsed:              backupCodeUsed,
		RequiresBackupCodeRegeneration: backupCodeUsed && remaining < minBackupCodesBeforeWarning,
	}, pair, nil
}

// minBackupCodesBeforeWarning is the remaining-code threshold below which a
// successful backup-code login asks the client to regenerate the set.
const minBackupCodesBeforeWarning = 3

// verifyCode accepts either a live TOTP code or an unconsumed backup code,
// consuming the backup code on match so it cannot be replayed. It reports
// whether a backup code (rather than a TOTP code) was used, and how many
// unconsumed backup codes remain afterward.
func (l *MFALoginLogic) verifyCode(user *models.User, code string) (backupCodeUsed bool, remaining int, err error) {
	secret, err := l.masterKey.Decrypt(*user.EncryptedTOTPSecret)
	if err != nil {
		return false, 0, errs.Wrap(errs.CryptoError, "auth: decrypt totp secret", err)
	}
	defer secret.Zero()

	if credential.VerifyTOTP(secret.String(), code) {
		return false, 0, nil
	}

	candidates, err := l.users.ListUnconsumedBackupCodes(l.ctx, user.ID)
	if err != nil {
		return false, 0, errs.Wrap(errs.StorageError, "auth: list backup codes", err)
	}
	matched, ok := credential.MatchBackupCode(candidates, code)
	if !ok {
		return false, 0, errs.New(errs.MfaError, "auth: invalid mfa code")
	}
	consumed, err := l.users.ConsumeBackupCode(l.ctx, matched.ID)
	if err != nil {
		return false, 0, errs.Wrap(errs.StorageError, "auth: consume backup code", err)
	}
	if !consumed {
		return false, 0, errs.New(errs.MfaError, "auth: backup code already used")
	}
	return true, len(candidates) - 1, nil
}
