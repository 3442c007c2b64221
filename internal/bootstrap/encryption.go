package bootstrap

import (
	"log/slog"

	"github.com/target/stockgate/internal/data/cryptoutil"
)

// NewCredentialSealer creates the AES-GCM sealer for persisted remote credentials.
// If the key is a 64-character hex string, it is decoded. Otherwise, it is hashed to 32 bytes.
// Returns a plain sealer if the key is empty or invalid (with warning log).
//
//nolint:ireturn // Returning interface is intentional for sealer abstraction
func NewCredentialSealer(key string, logger *slog.Logger) cryptoutil.Sealer {
	if key == "" {
		if logger != nil {
			logger.Warn("credential key is empty, remote credentials are stored unsealed")
		}
		return cryptoutil.PlainSealer{}
	}

	sealer, err := cryptoutil.NewAESGCMSealer(cryptoutil.KeyFromString(key))
	if err != nil {
		if logger != nil {
			logger.Warn("failed to create credential sealer, storing unsealed", "error", err)
		}
		return cryptoutil.PlainSealer{}
	}

	return sealer
}
