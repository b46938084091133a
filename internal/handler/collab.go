package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/rest/pathvar"

	"github.com/nosdesk/collab-core/internal/crdt"
	"github.com/nosdesk/collab-core/internal/middleware"
	"github.com/nosdesk/collab-core/internal/models"
	"github.com/nosdesk/collab-core/internal/svc"
)

// CollabTicketHandler upgrades to the CRDT sync socket for one ticket's
// article body.
func CollabTicketHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return collabHandler(svcCtx, models.TargetTicketArticle)
}

// CollabDocPageHandler upgrades to the CRDT sync socket for one
// documentation page.
func CollabDocPageHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return collabHandler(svcCtx, models.TargetDocPage)
}

func collabHandler(svcCtx *svc.ServiceContext, kind models.DocTargetKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		id, err := uuid.Parse(pathvar.Vars(r)["id"])
		if err != nil {
			http.Error(w, "malformed id", http.StatusBadRequest)
			return
		}
		crdt.ServeCollab(w, r, svcCtx.DocStore, id, kind, userID)
	}
}
