/*
Package authsdk is a client for the two-step OTP authentication service,
plus the wire types and error values shared with the server.

# Signing in

Sign-in takes two calls. Login checks the password and triggers delivery of
a one-time code; VerifyOTP trades the pending token and that code for a
session token:

	client := authsdk.NewSDKClient("https://auth.example.com")

	pending, err := client.Login(ctx, "ada@example.com", password)
	if err != nil {
		return err
	}

	// The code arrives out of band, usually by email.
	session, err := client.VerifyOTP(ctx, pending.PendingToken, code)
	if err != nil {
		return err
	}

	info, err := client.UserInfo(ctx, session.SessionToken)

SignIn wraps both calls around a callback that obtains the code:

	session, err := client.SignIn(ctx, email, password, func(ctx context.Context) (string, error) {
		return promptForCode(ctx)
	})

# Errors

Failed calls return *APIError. The predefined values compare by error code,
so errors.Is works across the wire:

	_, err := client.VerifyOTP(ctx, pending.PendingToken, code)
	switch {
	case errors.Is(err, authsdk.ErrInvalidCode):
		// wrong code, try again with the same pending token
	case errors.Is(err, authsdk.ErrChallengeExpired),
		errors.Is(err, authsdk.ErrAttemptsExceeded),
		errors.Is(err, authsdk.ErrChallengeNotFound):
		// start over with Login
	}

Only ErrInvalidCode leaves the challenge open. Every other failure requires a
fresh Login.

# Verifying tokens

Session tokens are JWTs. Services that accept them can fetch the signing keys
from GetJWKS and verify locally instead of calling UserInfo.
*/
package authsdk
