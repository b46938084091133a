package auth

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nosdesk/collab-core/internal/session"
)

type RefreshLogic struct {
	logx.Logger
	ctx      context.Context
	sessions *session.Manager
}

func NewRefreshLogic(ctx context.Context, sessions *session.Manager) *RefreshLogic {
	return &RefreshLogic{Logger: logx.WithContext(ctx), ctx: ctx, sessions: sessions}
}

func (l *RefreshLogic) Refresh(refreshToken string, dev session.DeviceInfo) (*session.IssuedPair, error) {
	return l.sessions.Refresh(l.ctx, refreshToken, dev)
}
