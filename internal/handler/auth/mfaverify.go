package auth

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	authlogic "github.com/nosdesk/collab-core/internal/logic/auth"
	"github.com/nosdesk/collab-core/internal/middleware"
	"github.com/nosdesk/collab-core/internal/svc"
	"github.com/nosdesk/collab-core/internal/types"
)

func MFAVerifyHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req types.MFAVerifyRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		l := authlogic.NewMFAVerifyLogic(r.Context(), svcCtx.Users, svcCtx.MasterKey)
		if err := l.MFAVerify(userID, req.Code); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, map[string]bool{"ok": true})
	}
}
