package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nosdesk/collab-core/internal/credential"
	"github.com/nosdesk/collab-core/internal/errs"
)

type RegenerateBackupCodesLogic struct {
	logx.Logger
	ctx   context.Context
	users Users
}

func NewRegenerateBackupCodesLogic(ctx context.Context, users Users) *RegenerateBackupCodesLogic {
	return &RegenerateBackupCodesLogic{Logger: logx.WithContext(ctx), ctx: ctx, users: users}
}

func (l *RegenerateBackupCodesLogic) RegenerateBackupCodes(userID uuid.UUID) ([]string, error) {
	plaintexts, rows, err := credential.GenerateBackupCodes(userID)
	if err != nil {
		return nil, err
	}
	if err := l.users.ReplaceBackupCodes(l.ctx, userID, rows); err != nil {
		return nil, errs.Wrap(errs.StorageError, "auth: store backup codes", err)
	}
	return plaintexts, nil
}
