package attendance

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/pkg/errors"
)

// nonceBytes gives 128 bits of entropy per token.
const nonceBytes = 16

var randReadFunc = rand.Read // mockable

// generateNonce returns a URL-safe opaque nonce. The encoding is unpadded
// base64url, stable across serialisation.
func generateNonce() (string, error) {
	buf := make([]byte, nonceBytes)
	if _, err := randReadFunc(buf); err != nil {
		return "", errors.Wrap(err, "generating token nonce")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
