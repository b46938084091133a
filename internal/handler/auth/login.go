package auth

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	authlogic "github.com/nosdesk/collab-core/internal/logic/auth"
	"github.com/nosdesk/collab-core/internal/svc"
	"github.com/nosdesk/collab-core/internal/types"
)

func LoginHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.LoginRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		l := authlogic.NewLoginLogic(r.Context(), svcCtx.Users, svcCtx.SessionManager, svcCtx.MasterKey)
		resp, pair, err := l.Login(&req, deviceInfoFromRequest(r))
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		if pair != nil {
			resp.Token = pair.AccessToken
			if err := setSessionCookies(w, svcCtx, pair); err != nil {
				httpx.ErrorCtx(r.Context(), w, err)
				return
			}
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}
