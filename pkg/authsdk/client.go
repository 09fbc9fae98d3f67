package authsdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SDKClient calls the authentication service over HTTP. It holds no tokens;
// callers pass them to each method.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a client with a ten second request timeout.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Login checks email and password and has the service send a one-time
// code. The returned pending token is needed for VerifyOTP.
func (c *SDKClient) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/login", "", LoginRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	var out LoginResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyOTP exchanges a pending token and its code for a session token.
func (c *SDKClient) VerifyOTP(ctx context.Context, pendingToken, code string) (*SessionResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/verify-otp", pendingToken, VerifyOTPRequest{
		Code: code,
	})
	if err != nil {
		return nil, err
	}

	var out SessionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// SignIn runs Login, asks code for the delivered code, then runs VerifyOTP.
// An incorrect code is asked for again until the service gives up on the
// challenge.
func (c *SDKClient) SignIn(
	ctx context.Context,
	email, password string,
	code func(ctx context.Context) (string, error),
) (*SessionResponse, error) {
	pending, err := c.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	for {
		otp, err := code(ctx)
		if err != nil {
			return nil, fmt.Errorf("read code: %w", err)
		}

		session, err := c.VerifyOTP(ctx, pending.PendingToken, otp)
		if err == nil {
			return session, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
	}
}

// UserInfo returns the identity behind a session token.
func (c *SDKClient) UserInfo(ctx context.Context, sessionToken string) (*UserInfoResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/userinfo", sessionToken, nil)
	if err != nil {
		return nil, err
	}

	var out UserInfoResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetJWKS retrieves the JSON Web Key Set for token verification.
func (c *SDKClient) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/.well-known/jwks.json", "", nil)
	if err != nil {
		return nil, err
	}

	var jwks JWKSResponse
	if err := decodeJSON(resp, &jwks, http.StatusOK); err != nil {
		return nil, err
	}
	return &jwks, nil
}

// GetLiveness checks if the service is alive.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// GetReadiness checks if the service is ready. A 503 comes back as an
// *APIError with StatusCode set.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *SDKClient) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}

func isRetryable(err error) bool {
	return errors.Is(err, ErrInvalidCode)
}
