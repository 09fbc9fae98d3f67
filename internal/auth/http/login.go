package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/otpauth/internal/auth/service"
	"github.com/aussiebroadwan/otpauth/pkg/authsdk"
	"github.com/aussiebroadwan/otpauth/pkg/clock"
	"github.com/aussiebroadwan/otpauth/pkg/httpx"
	"github.com/aussiebroadwan/otpauth/pkg/validatex"
)

const loginMessage = "a one-time code has been sent to your email address"

type LoginHandler struct {
	AuthService *service.AuthService
	Validator   *validatex.Validator
	Clock       clock.Clocker
}

// ServeHTTP handles the password step.
//
//	@Summary		Sign in with email and password
//	@Description	Verifies the password, sends a one-time code to the account's email and returns a pending token for the verify step.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.LoginResponse	"Pending token"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Malformed request"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid email or password"
//	@Failure		502		{object}	authsdk.ErrorResponse	"Code delivery failed"
//	@Router			/v1/auth/login [post].
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WithDescription("invalid JSON body").WriteError(w)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := h.Validator.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	res, err := h.AuthService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{
		PendingToken: res.PendingToken.Token,
		TokenType:    "Bearer",
		ExpiresIn:    res.PendingToken.ExpiresIn(h.Clock.Now()),
		Message:      loginMessage,
	})
}
