package auth

import (
	"net/http"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest/httpx"

	authlogic "github.com/nosdesk/collab-core/internal/logic/auth"
	"github.com/nosdesk/collab-core/internal/svc"
	"github.com/nosdesk/collab-core/internal/types"
)

// PasswordResetRequestHandler always answers 200 regardless of whether the
// address matched a user, so the endpoint cannot be used to enumerate
// registered emails. Delivering the plaintext token to the user is the
// concern of an external mailer, out of scope for the core; this handler
// only logs, at debug level, that a token was issued, never the token
// itself.
func PasswordResetRequestHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.PasswordResetRequestRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		l := authlogic.NewPasswordResetRequestLogic(r.Context(), svcCtx.Users, svcCtx.ResetTokens)
		token, err := l.PasswordResetRequest(req.Email)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		if token != "" {
			logx.WithContext(r.Context()).Debugf("auth: password reset token issued")
		}
		httpx.OkJsonCtx(r.Context(), w, map[string]bool{"ok": true})
	}
}

func PasswordResetCompleteHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.PasswordResetCompleteRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		l := authlogic.NewPasswordResetCompleteLogic(r.Context(), svcCtx.Users, svcCtx.ResetTokens, svcCtx.SessionManager)
		if err := l.PasswordResetComplete(req.Token, req.NewPassword); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, map[string]bool{"ok": true})
	}
}
