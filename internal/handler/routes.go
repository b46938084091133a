package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest"

	authhandler "github.com/nosdesk/collab-core/internal/handler/auth"
	"github.com/nosdesk/collab-core/internal/middleware"
	"github.com/nosdesk/collab-core/internal/svc"
)

// RegisterHandlers wires every route this core exposes onto server. Route
// groups are chained through the middleware the Session Authority, CSRF
// check, and rate limiter provide: login/refresh/reset endpoints run
// unauthenticated and rate-limited, without the CSRF check; everything
// else additionally requires a valid access_token cookie and passes the
// CSRF check.
func RegisterHandlers(server *rest.Server, svcCtx *svc.ServiceContext) {
	public := withChain(svcCtx, false)
	private := withChain(svcCtx, true)

	server.AddRoutes([]rest.Route{
		{Method: http.MethodPost, Path: "/auth/login", Handler: public(authhandler.LoginHandler(svcCtx))},
		{Method: http.MethodPost, Path: "/auth/mfa-login", Handler: public(authhandler.MFALoginHandler(svcCtx))},
		{Method: http.MethodPost, Path: "/auth/refresh", Handler: public(authhandler.RefreshHandler(svcCtx))},
		{Method: http.MethodPost, Path: "/auth/password-reset/request", Handler: public(authhandler.PasswordResetRequestHandler(svcCtx))},
		{Method: http.MethodPost, Path: "/auth/password-reset/complete", Handler: public(authhandler.PasswordResetCompleteHandler(svcCtx))},

		{Method: http.MethodPost, Path: "/auth/logout", Handler: private(authhandler.LogoutHandler(svcCtx))},
		{Method: http.MethodPost, Path: "/auth/mfa/setup", Handler: private(authhandler.MFASetupHandler(svcCtx))},
		{Method: http.MethodPost, Path: "/auth/mfa/verify", Handler: private(authhandler.MFAVerifyHandler(svcCtx))},
		{Method: http.MethodPost, Path: "/auth/mfa/enable", Handler: private(authhandler.MFAEnableHandler(svcCtx))},
		{Method: http.MethodPost, Path: "/auth/mfa/disable", Handler: private(authhandler.MFADisableHandler(svcCtx))},
		{Method: http.MethodPost, Path: "/auth/mfa/regenerate-backup-codes", Handler: private(authhandler.RegenerateBackupCodesHandler(svcCtx))},

		{Method: http.MethodPost, Path: "/collab/handshake", Handler: private(HandshakeHandler(svcCtx))},
		{Method: http.MethodGet, Path: "/events/tickets", Handler: public(SSEHandler(svcCtx))},

		{Method: http.MethodGet, Path: "/collab/tickets/:id", Handler: private(CollabTicketHandler(svcCtx))},
		{Method: http.MethodGet, Path: "/collab/docs/:id", Handler: private(CollabDocPageHandler(svcCtx))},
		{Method: http.MethodPatch, Path: "/docs/:id/parent", Handler: private(MoveDocPageHandler(svcCtx))},

		{Method: http.MethodPatch, Path: "/tickets/:id", Handler: private(UpdateTicketHandler(svcCtx))},
		{Method: http.MethodPost, Path: "/tickets/:id/comments", Handler: private(AddCommentHandler(svcCtx))},
		{Method: http.MethodDelete, Path: "/tickets/:id/comments/:commentId", Handler: private(DeleteCommentHandler(svcCtx))},
	})
}

// withChain returns a middleware chain builder. Rate limiting always runs,
// keyed off whatever auth state is present. The CSRF double-submit check
// only applies to the authenticated chain: the cookie it checks is itself
// minted on login, so applying it to login/refresh/password-reset would
// lock callers out of ever obtaining one.
func withChain(svcCtx *svc.ServiceContext, requireAuth bool) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		chained := svcCtx.RateLimit.Limit(next)
		if requireAuth {
			chained = middleware.CSRF(chained)
			chained = svcCtx.Auth.Required(chained)
		} else {
			chained = svcCtx.Auth.Optional(chained)
		}
		return chained
	}
}
