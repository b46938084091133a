package auth

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	authlogic "github.com/nosdesk/collab-core/internal/logic/auth"
	"github.com/nosdesk/collab-core/internal/middleware"
	"github.com/nosdesk/collab-core/internal/svc"
)

func RefreshHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(middleware.RefreshCookieName)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		l := authlogic.NewRefreshLogic(r.Context(), svcCtx.SessionManager)
		pair, err := l.Refresh(cookie.Value, deviceInfoFromRequest(r))
		if err != nil {
			clearSessionCookies(w, svcCtx)
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		if err := setSessionCookies(w, svcCtx, pair); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, map[string]string{"token": pair.AccessToken})
	}
}
