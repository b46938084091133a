package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/rest/httpx"
	"github.com/zeromicro/go-zero/rest/pathvar"

	"github.com/nosdesk/collab-core/internal/logic/tickets"
	"github.com/nosdesk/collab-core/internal/middleware"
	"github.com/nosdesk/collab-core/internal/svc"
	"github.com/nosdesk/collab-core/internal/types"
)

// UpdateTicketHandler is the Change Coordinator's live mutation path: a
// PATCH here stages a ticket-updated event that only reaches the Event
// Bus once the field write has committed.
func UpdateTicketHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ticketID, err := uuid.Parse(pathvar.Vars(r)["id"])
		if err != nil {
			http.Error(w, "malformed id", http.StatusBadRequest)
			return
		}
		var req types.UpdateTicketRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		l := tickets.NewUpdateTicketLogic(r.Context(), svcCtx.Tickets, svcCtx.Coord)
		if err := l.UpdateField(&req, ticketID, userID); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, map[string]bool{"ok": true})
	}
}

func AddCommentHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ticketID, err := uuid.Parse(pathvar.Vars(r)["id"])
		if err != nil {
			http.Error(w, "malformed id", http.StatusBadRequest)
			return
		}
		var req types.AddCommentRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		l := tickets.NewCommentLogic(r.Context(), svcCtx.Tickets, svcCtx.Comments, svcCtx.Coord)
		resp, err := l.Add(&req, ticketID, userID)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}

func DeleteCommentHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.UserIDFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		vars := pathvar.Vars(r)
		ticketID, err := uuid.Parse(vars["id"])
		if err != nil {
			http.Error(w, "malformed id", http.StatusBadRequest)
			return
		}
		commentID, err := uuid.Parse(vars["commentId"])
		if err != nil {
			http.Error(w, "malformed comment id", http.StatusBadRequest)
			return
		}

		l := tickets.NewCommentLogic(r.Context(), svcCtx.Tickets, svcCtx.Comments, svcCtx.Coord)
		if err := l.Delete(ticketID, commentID); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, map[string]bool{"ok": true})
	}
}
