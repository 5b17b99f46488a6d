package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// Signer computes hex encoded HMAC-SHA256 signatures.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer keyed with secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the hex signature of payload.
func (s *Signer) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature with the signature of payload in constant time.
// A "sha256=" prefix is accepted.
func (s *Signer) Verify(payload []byte, signature string) bool {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), signaturePrefix)
	got, err := hex.DecodeString(signature)
	if err != nil || len(got) != sha256.Size {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}
