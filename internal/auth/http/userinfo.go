package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/otpauth/internal/auth/service"
	"github.com/aussiebroadwan/otpauth/internal/auth/store"
	"github.com/aussiebroadwan/otpauth/pkg/authsdk"
	"github.com/aussiebroadwan/otpauth/pkg/httpx"
	"github.com/aussiebroadwan/otpauth/pkg/slogx"
)

type UserInfoHandler struct {
	Directory service.UserDirectory
}

// ServeHTTP returns the identity behind a session token.
//
//	@Summary		Get user information
//	@Description	Returns the signed-in user. Requires a session token; pending tokens are rejected.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserInfoResponse	"sub, email, full_name"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Invalid or missing session token"
//	@Failure		500	{object}	authsdk.ErrorResponse		"Internal server error"
//	@Router			/v1/userinfo [get].
func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	// Get subject (user ID) from request context.
	userID, ok := ctx.Value(httpx.CtxKeyUserID).(string)
	if !ok || userID == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	user, err := h.Directory.Lookup(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("session token for unknown user", "user_id", userID)
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}
	if err != nil {
		log.Warn("failed to load user", "user_id", userID, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	// A deactivated account loses access before its session token expires.
	if !h.Directory.IsActive(user) {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.UserInfoResponse{
		Subject:  user.ID,
		Email:    user.Email,
		FullName: user.FullName(),
	})
}
