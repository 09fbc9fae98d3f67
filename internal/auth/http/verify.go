package http

import (
	"net/http"

	"github.com/aussiebroadwan/otpauth/internal/auth/service"
	"github.com/aussiebroadwan/otpauth/pkg/authsdk"
	"github.com/aussiebroadwan/otpauth/pkg/clock"
	"github.com/aussiebroadwan/otpauth/pkg/httpx"
	"github.com/aussiebroadwan/otpauth/pkg/validatex"
)

type VerifyOTPHandler struct {
	AuthService *service.AuthService
	Validator   *validatex.Validator
	Clock       clock.Clocker
}

// ServeHTTP handles the one-time code step.
//
//	@Summary		Verify a one-time code
//	@Description	Exchanges the pending token from /v1/auth/login and the delivered code for a session token.
//	@Description	Only invalid_code may be retried with the same pending token.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.VerifyOTPRequest	true	"Code"
//	@Success		200		{object}	authsdk.SessionResponse		"Session token"
//	@Failure		400		{object}	authsdk.ErrorResponse		"invalid_code, challenge_expired, attempts_exceeded or challenge_not_found"
//	@Failure		401		{object}	authsdk.ErrorResponse		"Missing or invalid pending token"
//	@Router			/v1/auth/verify-otp [post].
func (h *VerifyOTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, ok := httpx.BearerToken(r)
	if !ok {
		writeServiceError(w, r, service.ErrMissingOrInvalidToken)
		return
	}

	var req authsdk.VerifyOTPRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WithDescription("invalid JSON body").WriteError(w)
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	res, err := h.AuthService.VerifyOTP(r.Context(), token, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.SessionResponse{
		SessionToken: res.SessionToken.Token,
		TokenType:    "Bearer",
		ExpiresIn:    res.SessionToken.ExpiresIn(h.Clock.Now()),
	})
}
