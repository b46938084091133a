package handler

import (
	"context"
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/nosdesk/collab-core/internal/errs"
)

// ErrorBody is the JSON shape httpx.ErrorCtx writes for every handler
// error, once RegisterErrorHandler below has been installed.
type ErrorBody struct {
	Error string `json:"error"`
}

// RegisterErrorHandler maps the error taxonomy's Kind onto HTTP status
// codes, so every handler can return a plain *errs.Error and let the
// transport layer pick the status instead of doing it itself.
func RegisterErrorHandler() {
	httpx.SetErrorHandlerCtx(func(ctx context.Context, err error) (int, interface{}) {
		return statusFor(errs.KindOf(err)), ErrorBody{Error: err.Error()}
	})
}

func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.InvalidInput:
		return http.StatusBadRequest
	case errs.AuthError:
		return http.StatusUnauthorized
	case errs.MfaError:
		return http.StatusUnauthorized
	case errs.NotFound:
		return http.StatusNotFound
	case errs.ConflictError:
		return http.StatusConflict
	case errs.BackpressureDrop:
		return http.StatusTooManyRequests
	case errs.CryptoError, errs.StorageError, errs.CoreFatal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
