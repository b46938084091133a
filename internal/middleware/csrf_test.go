package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCSRF_AllowsSafeMethodWithoutCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	called := false
	CSRF(func(w http.ResponseWriter, r *http.Request) { called = true })(rec, req)

	assert.True(t, called)
}

func TestCSRF_RejectsMutationWithoutToken(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)

	called := false
	CSRF(func(w http.ResponseWriter, r *http.Request) { called = true })(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCSRF_RejectsMismatchedHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "abc123"})
	req.Header.Set(csrfHeaderName, "different")

	called := false
	CSRF(func(w http.ResponseWriter, r *http.Request) { called = true })(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCSRF_AllowsMatchingDoubleSubmit(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "abc123"})
	req.Header.Set(csrfHeaderName, "abc123")

	called := false
	CSRF(func(w http.ResponseWriter, r *http.Request) { called = true })(rec, req)

	assert.True(t, called)
}
