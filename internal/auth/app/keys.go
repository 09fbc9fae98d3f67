package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/otpauth/pkg/jwtx"
)

// InitAuthKeys generates the signing keys for this process. Keys live only
// in memory, so every token issued before a restart stops verifying.
//
// Supported algorithms: RS256, ES256, EdDSA
func InitAuthKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	logger.Info("initializing ephemeral key manager",
		"algorithm", cfg.Algorithm,
		"num_keys", cfg.NumKeys,
	)

	keyManager, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: cfg.Algorithm,
		Issuer:    cfg.Issuer,
		Audience:  cfg.Audience,
		NumKeys:   cfg.NumKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ephemeral key manager: %w", err)
	}

	logger.Info("generated ephemeral signing keys",
		"algorithm", keyManager.Algorithm(),
		"num_keys", keyManager.NumSigners(),
		"issuer", cfg.Issuer,
	)

	logger.Warn("all existing tokens are now invalid due to key rotation on startup")

	return keyManager, nil
}
