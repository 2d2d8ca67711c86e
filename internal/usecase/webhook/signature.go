package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Sign returns the lowercase hex HMAC-SHA256 of event + ":" + canonical(payload).
func Sign(secret, event string, payload []byte) (string, error) {
	canonical, err := canonicalize(payload)
	if err != nil {
		return "", fmt.Errorf("webhook - Sign - canonicalize: %w", err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(event + ":" + canonical))

	return hex.EncodeToString(mac.Sum(nil)), nil
}

func verify(secret, event string, payload []byte, signature string) (bool, error) {
	expected, err := Sign(secret, event, payload)
	if err != nil {
		return false, err
	}

	return hmac.Equal([]byte(expected), []byte(signature)), nil
}
