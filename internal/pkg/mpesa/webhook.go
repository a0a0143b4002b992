package mpesa

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignPayload computes the hex HMAC-SHA256 signature of a callback body
func SignPayload(body []byte, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a callback signature in constant time. An empty
// key disables verification (sandbox mode).
func VerifySignature(body []byte, signature, key string) bool {
	if key == "" {
		return true
	}
	expected := SignPayload(body, key)
	return hmac.Equal([]byte(expected), []byte(signature))
}
