package authsdk

import "github.com/aussiebroadwan/otpauth/pkg/jwtx"

// ErrorResponse is the JSON body of an error.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ============================================================================
// Sign-in Types
// ============================================================================

// LoginRequest is the body of POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

// LoginResponse carries the pending token that gates the OTP step. The code
// itself is never part of it.
type LoginResponse struct {
	PendingToken string `json:"pending_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
	Message      string `json:"message,omitempty"`
}

// VerifyOTPRequest is the body of POST /v1/auth/verify-otp. The pending
// token goes in the Authorization header.
type VerifyOTPRequest struct {
	Code string `json:"code" validate:"required,number,min=6,max=8"`
}

// SessionResponse carries the session token issued after a correct code.
type SessionResponse struct {
	SessionToken string `json:"session_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
}

// UserInfoResponse is the identity behind a session token.
type UserInfoResponse struct {
	Subject  string `json:"sub"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse is returned by /livez and /readyz; only readyz fills Checks.
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks holds the state of each dependency checked by /readyz.
type HealthChecks struct {
	Database   string `json:"database"`
	Challenges string `json:"challenges"`
	Signer     string `json:"signer"`
}

// ============================================================================
// JWKS Types
// ============================================================================

// JWKSResponse contains the public keys that verify session tokens.
type JWKSResponse jwtx.JWKS
