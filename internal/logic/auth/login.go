// Package auth is the login/MFA/session logic layer the auth handlers
// call into: each Logic type resolves one request against the Credential
// Store and Session Authority and returns either a response or a
// taxonomy error for the handler to map to a status code.
package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nosdesk/collab-core/internal/credential"
	"github.com/nosdesk/collab-core/internal/errs"
	"github.com/nosdesk/collab-core/internal/models"
	"github.com/nosdesk/collab-core/internal/repository"
	"github.com/nosdesk/collab-core/internal/session"
	"github.com/nosdesk/collab-core/internal/types"
)

// Users is the slice of the user repository the auth logic package needs.
// Declared here rather than depending on *repository.UserRepository
// directly so tests can substitute a fake.
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetLocalIdentity(ctx context.Context, externalID string) (*models.AuthIdentity, error)
	SetMFA(ctx context.Context, userID uuid.UUID, encryptedSecret *string, enabled bool) error
	TouchPasswordChanged(ctx context.Context, userID uuid.UUID) error
	SetLocalPasswordHash(ctx context.Context, userID uuid.UUID, hash string) error
	ReplaceBackupCodes(ctx context.Context, userID uuid.UUID, codes []models.BackupCode) error
	ListUnconsumedBackupCodes(ctx context.Context, userID uuid.UUID) ([]models.BackupCode, error)
	ConsumeBackupCode(ctx context.Context, id uuid.UUID) (bool, error)
}

// ResetTokens is the slice of ResetTokenRepository the password-reset flow
// needs.
type ResetTokens interface {
	Create(ctx context.Context, t models.ResetToken) error
	GetByHash(ctx context.Context, hash string) (*models.ResetToken, error)
	Consume(ctx context.Context, hash string) (bool, error)
}

type LoginLogic struct {
	logx.Logger
	ctx       context.Context
	users     Users
	sessions  *session.Manager
	masterKey *credential.MasterKey
}

func NewLoginLogic(ctx context.Context, users Users, sessions *session.Manager, masterKey *credential.MasterKey) *LoginLogic {
	return &LoginLogic{Logger: logx.WithContext(ctx), ctx: ctx, users: users, sessions: sessions, masterKey: masterKey}
}

// Login verifies email+password. If the user has MFA enabled it stops
// short of issuing a session and reports mfa_required so the client
// re-submits through mfa-login with the same credentials plus a TOTP code.
// The caller is responsible for turning a non-nil IssuedPair into cookies.
func (l *LoginLogic) Login(req *types.LoginRequest, dev session.DeviceInfo) (*types.LoginResponse, *session.IssuedPair, error) {
	user, err := l.verifyPassword(req.Email, req.Password)
	if err != nil {
		return nil, nil, err
	}

	if user.MFAEnabled {
		return &types.LoginResponse{MFARequired: true, UserID: user.ID.String()}, nil, nil
	}

	pair, err := l.sessions.IssueSession(l.ctx, user.ID, user.Role, dev)
	if err != nil {
		return nil, nil, err
	}
	return &types.LoginResponse{User: toAuthUser(user)}, pair, nil
}

func (l *LoginLogic) verifyPassword(email, password string) (*models.User, error) {
	user, err := l.users.GetByEmail(l.ctx, email)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errs.New(errs.AuthError, "auth: invalid credentials")
		}
		return nil, errs.Wrap(errs.StorageError, "auth: lookup user", err)
	}

	identity, err := l.users.GetLocalIdentity(l.ctx, user.Email)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errs.New(errs.AuthError, "auth: invalid credentials")
		}
		return nil, errs.Wrap(errs.StorageError, "auth: lookup identity", err)
	}

	ok, needsRehash := credential.VerifyPassword(password, identity.PasswordHash)
	if !ok {
		return nil, errs.New(errs.AuthError, "auth: invalid credentials")
	}
	if needsRehash {
		if hash, err := credential.HashPassword(password); err != nil {
			l.Errorf("auth: re-hash password: %v", err)
		} else if err := l.users.SetLocalPasswordHash(l.ctx, user.ID, hash); err != nil {
			l.Errorf("auth: store re-hashed password: %v", err)
		}
	}
	return user, nil
}

func toAuthUser(u *models.User) *types.AuthUser {
	return &types.AuthUser{ID: u.ID.String(), DisplayName: u.DisplayName, Email: u.Email, Role: string(u.Role)}
}
