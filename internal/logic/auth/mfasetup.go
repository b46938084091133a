package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nosdesk/collab-core/internal/credential"
	"github.com/nosdesk/collab-core/internal/errs"
	"github.com/nosdesk/collab-core/internal/types"
)

// issuerName appears in the otpauth:// URI an authenticator app scans.
const issuerName = "collab-core"

type MFASetupLogic struct {
	logx.Logger
	ctx       context.Context
	users     Users
	masterKey *credential.MasterKey
}

func NewMFASetupLogic(ctx context.Context, users Users, masterKey *credential.MasterKey) *MFASetupLogic {
	return &MFASetupLogic{Logger: logx.WithContext(ctx), ctx: ctx, users: users, masterKey: masterKey}
}

// MFASetup generates a fresh TOTP secret, stores it encrypted with
// mfa_enabled left false, and returns the secret for the client to render
// as a QR code. A subsequent MFAVerify call flips mfa_enabled on.
func (l *MFASetupLogic) MFASetup(userID uuid.UUID, accountEmail string) (*types.MFASetupResponse, error) {
	key, err := credential.GenerateTOTPSecret(issuerName, accountEmail)
	if err != nil {
		return nil, err
	}

	encrypted, err := l.masterKey.Encrypt([]byte(key.Secret()))
	if err != nil {
		return nil, err
	}
	if err := l.users.SetMFA(l.ctx, userID, &encrypted, false); err != nil {
		return nil, errs.Wrap(errs.StorageError, "auth: store pending totp secret", err)
	}

	return &types.MFASetupResponse{Secret: key.Secret(), OtpauthURL: key.URL()}, nil
}
