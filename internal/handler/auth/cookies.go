// Package auth wires HTTP handlers for the authentication endpoints onto
// the internal/logic/auth logic layer, following the parse/call/respond
// shape goctl scaffolds for every handler in this codebase.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/nosdesk/collab-core/internal/middleware"
	"github.com/nosdesk/collab-core/internal/session"
	"github.com/nosdesk/collab-core/internal/svc"
)

// setSessionCookies writes access_token and refresh_token as httpOnly
// cookies and csrf_token as a readable cookie the client echoes back in
// the X-CSRF-Token header on mutating requests.
func setSessionCookies(w http.ResponseWriter, svcCtx *svc.ServiceContext, pair *session.IssuedPair) error {
	secure := isProduction(svcCtx)

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessCookieName,
		Value:    pair.AccessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  pair.ExpiresAt,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.RefreshCookieName,
		Value:    pair.RefreshToken,
		Path:     "/auth",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().UTC().Add(svcCtx.Config.Auth.RefreshTokenTTL),
	})

	csrfToken, err := generateCSRFToken()
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CSRFCookieName,
		Value:    csrfToken,
		Path:     "/",
		HttpOnly: false,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  pair.ExpiresAt,
	})
	return nil
}

// clearSessionCookies expires every cookie setSessionCookies wrote, for
// logout.
func clearSessionCookies(w http.ResponseWriter, svcCtx *svc.ServiceContext) {
	secure := isProduction(svcCtx)
	expired := time.Unix(0, 0)
	for _, c := range []struct{ name, path string }{
		{middleware.AccessCookieName, "/"},
		{middleware.RefreshCookieName, "/auth"},
		{middleware.CSRFCookieName, "/"},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     c.path,
			HttpOnly: c.name != middleware.CSRFCookieName,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
			Expires:  expired,
			MaxAge:   -1,
		})
	}
}

func isProduction(svcCtx *svc.ServiceContext) bool {
	return svcCtx.Config.Mode == "pro" || svcCtx.Config.Mode == "pre"
}

func generateCSRFToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func deviceInfoFromRequest(r *http.Request) session.DeviceInfo {
	return session.DeviceInfo{
		IP:          middleware.ClientIP(r),
		UserAgent:   r.UserAgent(),
		DeviceLabel: r.UserAgent(),
	}
}
