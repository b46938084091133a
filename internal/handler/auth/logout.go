package auth

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	authlogic "github.com/nosdesk/collab-core/internal/logic/auth"
	"github.com/nosdesk/collab-core/internal/middleware"
	"github.com/nosdesk/collab-core/internal/svc"
)

func LogoutHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := middleware.SessionIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		l := authlogic.NewLogoutLogic(r.Context(), svcCtx.SessionManager)
		if err := l.Logout(sessionID); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		clearSessionCookies(w, svcCtx)
		httpx.OkJsonCtx(r.Context(), w, map[string]bool{"ok": true})
	}
}
