package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/otpauth/internal/auth/service"
	"github.com/aussiebroadwan/otpauth/pkg/authsdk"
	"github.com/aussiebroadwan/otpauth/pkg/slogx"
	"github.com/aussiebroadwan/otpauth/pkg/validatex"
)

var serviceErrors = []struct {
	err error
	api *authsdk.APIError
}{
	{service.ErrInvalidCredentials, authsdk.ErrInvalidCredentials},
	{service.ErrNotificationFailed, authsdk.ErrNotificationFailed},
	{service.ErrMissingOrInvalidToken, authsdk.ErrInvalidToken},
	{service.ErrChallengeNotFound, authsdk.ErrChallengeNotFound},
	{service.ErrChallengeExpired, authsdk.ErrChallengeExpired},
	{service.ErrAttemptsExceeded, authsdk.ErrAttemptsExceeded},
	{service.ErrInvalidCode, authsdk.ErrInvalidCode},
}

// apiError maps a service failure to its response. Unknown errors become
// server_error so internals never reach the client.
func apiError(err error) *authsdk.APIError {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			return m.api
		}
	}
	return authsdk.ErrServerError
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	e := apiError(err)
	if e == authsdk.ErrServerError {
		slogx.FromContext(r.Context()).Error("request failed", slog.Any("error", err))
	}
	if e == authsdk.ErrInvalidToken {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	e.WriteError(w)
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verr validatex.Errors
	if errors.As(err, &verr) {
		authsdk.ErrInvalidRequest.WithDescription(verr.Summary()).WriteError(w)
		return
	}
	authsdk.ErrInvalidRequest.WriteError(w)
}
