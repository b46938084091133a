package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nosdesk/collab-core/internal/session"
)

type LogoutLogic struct {
	logx.Logger
	ctx      context.Context
	sessions *session.Manager
}

func NewLogoutLogic(ctx context.Context, sessions *session.Manager) *LogoutLogic {
	return &LogoutLogic{Logger: logx.WithContext(ctx), ctx: ctx, sessions: sessions}
}

func (l *LogoutLogic) Logout(sessionID uuid.UUID) error {
	return l.sessions.Logout(l.ctx, sessionID)
}
