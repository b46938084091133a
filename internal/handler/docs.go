package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/rest/httpx"
	"github.com/zeromicro/go-zero/rest/pathvar"

	"github.com/nosdesk/collab-core/internal/logic/docs"
	"github.com/nosdesk/collab-core/internal/svc"
	"github.com/nosdesk/collab-core/internal/types"
)

// MoveDocPageHandler reparents a documentation page, enforcing the
// cycle-rejection invariant before the write.
func MoveDocPageHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(pathvar.Vars(r)["id"])
		if err != nil {
			http.Error(w, "malformed id", http.StatusBadRequest)
			return
		}
		var req types.MoveDocPageRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		var newParent *uuid.UUID
		if req.ParentID != nil {
			parsed, err := uuid.Parse(*req.ParentID)
			if err != nil {
				http.Error(w, "malformed parent_id", http.StatusBadRequest)
				return
			}
			newParent = &parsed
		}

		l := docs.NewMovePageLogic(r.Context(), svcCtx.Documents)
		if err := l.Move(id, newParent); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, map[string]bool{"ok": true})
	}
}
