package card

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// newApprovalToken returns a 32-byte URL-safe random token.
func newApprovalToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("card: generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
