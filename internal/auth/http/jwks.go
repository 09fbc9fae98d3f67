package http

import (
	"net/http"

	"github.com/aussiebroadwan/otpauth/pkg/authsdk"
	"github.com/aussiebroadwan/otpauth/pkg/httpx"
	"github.com/aussiebroadwan/otpauth/pkg/jwtx"
)

// Keys are generated at startup and never rotate in-process, so verifiers
// may cache the set briefly.
const jwksMaxAge = "public, max-age=300"

// JWKSHandler serves the public keys that verify pending and session tokens.
//
//	@Summary		Get JWKS
//	@Description	Public keys for pending and session tokens. Tell the two apart by the token_use claim.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.JWKSResponse	"The JSON Web Key Set"
//	@Failure		503	{object}	authsdk.ErrorResponse	"No keys loaded"
//	@Router			/.well-known/jwks.json [get].
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !keys.IsReady() {
			authsdk.NewAPIError(http.StatusServiceUnavailable, authsdk.ErrorCodeServerError, "no signing keys loaded").WriteError(w)
			return
		}
		w.Header().Set("Cache-Control", jwksMaxAge)
		httpx.WriteJSON(w, http.StatusOK, authsdk.JWKSResponse(keys.PublicJWKS()))
	}
}
