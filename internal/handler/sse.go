// Package handler wires the top-level routes that don't belong to the
// auth group: the SSE event stream and the CRDT collaboration sockets.
package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/nosdesk/collab-core/internal/eventbus"
	"github.com/nosdesk/collab-core/internal/middleware"
	"github.com/nosdesk/collab-core/internal/svc"
)

// SSEHandler redeems a one-shot handshake token minted by POST
// /collab/handshake and upgrades the connection to a Server-Sent-Events
// stream scoped to the optional ticket_id query parameter.
func SSEHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("sse_token")
		if token == "" {
			http.Error(w, "missing sse_token", http.StatusUnauthorized)
			return
		}

		userID, _, err := svcCtx.Handshakes.Redeem(r.Context(), token)
		if err != nil {
			http.Error(w, "invalid or expired handshake token", http.StatusUnauthorized)
			return
		}

		scope := eventbus.GlobalScope
		if ticketID := r.URL.Query().Get("ticket_id"); ticketID != "" {
			scope = eventbus.TicketScope(ticketID)
		}

		eventbus.ServeSSE(w, r, svcCtx.EventBus, userID, scope)
	}
}

// HandshakeHandler mints the one-shot token SSEHandler later redeems, for
// the already-authenticated caller.
func HandshakeHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		sessionID, _ := middleware.SessionIDFromContext(r.Context())

		token, err := svcCtx.Handshakes.Issue(userID, sessionID)
		if err != nil {
			http.Error(w, "failed to issue handshake token", http.StatusInternalServerError)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, map[string]string{"sse_token": token})
	}
}
