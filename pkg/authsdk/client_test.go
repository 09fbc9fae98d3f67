package authsdk_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/aussiebroadwan/otpauth/pkg/authsdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLoginSendsCredentials(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var req authsdk.LoginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ada@example.com", req.Email)
		assert.Equal(t, "secret", req.Password)

		writeJSON(w, http.StatusOK, authsdk.LoginResponse{
			PendingToken: "pending",
			TokenType:    "Bearer",
			ExpiresIn:    120,
		})
	}))
	t.Cleanup(srv.Close)

	res, err := authsdk.NewSDKClient(srv.URL+"/").Login(t.Context(), "ada@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, "pending", res.PendingToken)
	require.EqualValues(t, 120, res.ExpiresIn)
}

func TestVerifyOTPSendsBearer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer pending", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, authsdk.SessionResponse{SessionToken: "session", TokenType: "Bearer", ExpiresIn: 86400})
	}))
	t.Cleanup(srv.Close)

	res, err := authsdk.NewSDKClient(srv.URL).VerifyOTP(t.Context(), "pending", "123456")
	require.NoError(t, err)
	require.Equal(t, "session", res.SessionToken)
}

func TestErrorResponses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   *authsdk.APIError
	}{
		{"invalid code", http.StatusBadRequest, `{"error":"invalid_code","error_description":"nope"}`, authsdk.ErrInvalidCode},
		{"expired", http.StatusBadRequest, `{"error":"challenge_expired"}`, authsdk.ErrChallengeExpired},
		{"credentials", http.StatusUnauthorized, `{"error":"invalid_credentials"}`, authsdk.ErrInvalidCredentials},
		{"not json", http.StatusBadGateway, `upstream down`, authsdk.ErrServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			_, err := authsdk.NewSDKClient(srv.URL).VerifyOTP(t.Context(), "pending", "123456")
			require.ErrorIs(t, err, tt.want)

			var apiErr *authsdk.APIError
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, tt.status, apiErr.StatusCode)
		})
	}
}

func TestSignIn(t *testing.T) {
	t.Parallel()

	newServer := func(t *testing.T, finalErr string) (*httptest.Server, *atomic.Int32) {
		var verifies atomic.Int32
		mux := http.NewServeMux()
		mux.HandleFunc("POST /v1/auth/login", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, authsdk.LoginResponse{PendingToken: "pending", TokenType: "Bearer"})
		})
		mux.HandleFunc("POST /v1/auth/verify-otp", func(w http.ResponseWriter, r *http.Request) {
			n := verifies.Add(1)
			var req authsdk.VerifyOTPRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if req.Code == "654321" {
				writeJSON(w, http.StatusOK, authsdk.SessionResponse{SessionToken: "session", TokenType: "Bearer"})
				return
			}
			if n >= 2 && finalErr != "" {
				writeJSON(w, http.StatusBadRequest, authsdk.ErrorResponse{Error: finalErr})
				return
			}
			writeJSON(w, http.StatusBadRequest, authsdk.ErrorResponse{Error: authsdk.ErrorCodeInvalidCode})
		})
		srv := httptest.NewServer(mux)
		t.Cleanup(srv.Close)
		return srv, &verifies
	}

	t.Run("retries invalid code", func(t *testing.T) {
		t.Parallel()
		srv, verifies := newServer(t, "")

		codes := []string{"111111", "654321"}
		res, err := authsdk.NewSDKClient(srv.URL).SignIn(t.Context(), "ada@example.com", "secret",
			func(context.Context) (string, error) {
				c := codes[0]
				codes = codes[1:]
				return c, nil
			})
		require.NoError(t, err)
		require.Equal(t, "session", res.SessionToken)
		require.EqualValues(t, 2, verifies.Load())
	})

	t.Run("stops on attempts exceeded", func(t *testing.T) {
		t.Parallel()
		srv, verifies := newServer(t, authsdk.ErrorCodeAttemptsExceeded)

		_, err := authsdk.NewSDKClient(srv.URL).SignIn(t.Context(), "ada@example.com", "secret",
			func(context.Context) (string, error) { return "111111", nil })
		require.ErrorIs(t, err, authsdk.ErrAttemptsExceeded)
		require.EqualValues(t, 2, verifies.Load())
	})

	t.Run("code prompt fails", func(t *testing.T) {
		t.Parallel()
		srv, _ := newServer(t, "")
		boom := errors.New("stdin closed")

		_, err := authsdk.NewSDKClient(srv.URL).SignIn(t.Context(), "ada@example.com", "secret",
			func(context.Context) (string, error) { return "", boom })
		require.ErrorIs(t, err, boom)
	})
}
