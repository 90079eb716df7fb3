package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// signPayload computes HMAC-SHA256(secret, "<timestamp>.<body>") as the
// ingress's canonical signing string (§4.1 check 5).
func signPayload(secretHex, timestamp string, body []byte) (string, error) {
	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// verifySignature reports whether sigHex is the expected HMAC for
// (timestamp, body) under secretHex, compared in constant time.
func verifySignature(secretHex, timestamp string, body []byte, sigHex string) bool {
	expected, err := signPayload(secretHex, timestamp, body)
	if err != nil {
		return false
	}
	expectedBytes, err := hex.DecodeString(expected)
	if err != nil {
		return false
	}
	sigBytes, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	return hmac.Equal(expectedBytes, sigBytes)
}
