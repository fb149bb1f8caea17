package app

import (
	"fmt"
	"log/slog"

	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/jwtx"
)

// InitKeys generates the process signing keys. Keys live in memory only, so
// every outstanding token dies with the process.
func InitKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: cfg.Algorithm,
		Issuer:    cfg.Issuer,
		Audience:  cfg.Audience,
		NumKeys:   cfg.NumKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("generate signing keys: %w", err)
	}

	logger.Info("generated ephemeral signing keys",
		"algorithm", km.Algorithm(),
		"num_keys", km.NumSigners(),
		"issuer", cfg.Issuer,
	)
	logger.Warn("tokens issued before this start are no longer valid")
	return km, nil
}
