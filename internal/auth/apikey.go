package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// apiKeyPrefix makes issued keys recognisable in logs and config files
// without revealing anything about their contents.
const apiKeyPrefix = "sv_"

// NewAPIKey mints a random API key: 32 bytes from crypto/rand, hex-encoded,
// with a fixed prefix. Uniqueness is enforced only by the database's UNIQUE
// constraint on the api_key column — at 256 bits of entropy a collision is
// not a case worth a retry loop.
func NewAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generating api key: %w", err)
	}
	return apiKeyPrefix + hex.EncodeToString(buf), nil
}
