package middleware

import (
	"net/http"
)

// safeMethods never require a CSRF check: they must not mutate state.
var safeMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// CSRF enforces the double-submit cookie check: a state-changing request
// must echo the non-httpOnly csrf_token cookie back in the X-CSRF-Token
// header. A mismatch or missing pair is a 403, never a 401 — this is a
// forgery check, not an authentication failure.
func CSRF(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if safeMethods[r.Method] {
			next(w, r)
			return
		}

		cookie, err := r.Cookie(csrfCookieName)
		if err != nil || cookie.Value == "" {
			http.Error(w, "csrf token missing", http.StatusForbidden)
			return
		}
		header := r.Header.Get(csrfHeaderName)
		if header == "" || header != cookie.Value {
			http.Error(w, "csrf token mismatch", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}
