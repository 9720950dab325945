package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const refreshSecretSize = 32

// NewRefreshSecret returns a random opaque refresh secret (base64url) and the
// hex sha256 hash under which the ledger stores it.
func NewRefreshSecret() (secret string, hash string, err error) {
	buf := make([]byte, refreshSecretSize)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate refresh secret: %w", err)
	}
	secret = base64.RawURLEncoding.EncodeToString(buf)
	return secret, HashRefreshSecret(secret), nil
}

func HashRefreshSecret(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}
