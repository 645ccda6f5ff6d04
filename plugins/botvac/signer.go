package botvac

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signatureScheme = "NEATOAPP "

// Signature is the canonical message and its keyed digest for a nucleo request.
type Signature struct {
	Message string
	Digest  string
}

// Authorization renders the header value sent with the signed request.
func (s Signature) Authorization() string {
	return signatureScheme + s.Digest
}

// Sign builds "lower(serial)\ndate\npayload" and its hex HMAC-SHA256 under secret.
// Only the serial is lowercased; payload must be the exact bytes sent on the wire.
func Sign(serial, secret, date string, payload []byte) Signature {
	message := strings.Join([]string{strings.ToLower(serial), date, string(payload)}, "\n")
	return Signature{
		Message: message,
		Digest:  hex.EncodeToString(hmacSha256([]byte(secret), []byte(message))),
	}
}

func hmacSha256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	_, _ = h.Write(data)
	return h.Sum(nil)
}
