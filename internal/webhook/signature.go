package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/daybreak-labs/triggerd/internal/domain"
)

const algoSHA256 = "sha256"

// ComputeSignature returns the signature a sender is expected to
// supply: an algorithm tag plus the hex HMAC-SHA-256 of the raw body
// keyed by the shared secret.
func ComputeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return algoSHA256 + "=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a supplied signature header value against
// the exact body bytes as received. Signatures are computed over raw
// bytes, never over re-serialized JSON; key ordering and whitespace
// differences would break them.
//
// An algorithm tag this build cannot compute fails closed: the
// delivery is rejected rather than accepted unauthenticated.
func VerifySignature(secret string, body []byte, header string) error {
	algo, sig, found := strings.Cut(header, "=")
	if !found {
		return domain.ErrSignatureInvalid
	}
	if algo != algoSHA256 {
		return domain.ErrVerificationUnavailable
	}

	sent, err := hex.DecodeString(sig)
	if err != nil {
		return domain.ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	// hmac.Equal compares in constant time.
	if !hmac.Equal(sent, expected) {
		return domain.ErrSignatureInvalid
	}
	return nil
}
