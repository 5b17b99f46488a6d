package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidToken = errors.New("invalid auth token")

const defaultTokenTTL = 24 * time.Hour

// HMACStrategy issues "<payload>.<signature>" tokens where payload is "userID:expiry".
type HMACStrategy struct {
	signer *Signer
	ttl    time.Duration
	now    func() time.Time
}

// NewHMACStrategy builds HMACStrategy with provided secret and options.
func NewHMACStrategy(secret string, opts Options) *HMACStrategy {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &HMACStrategy{signer: NewSigner(secret), ttl: ttl, now: now}
}

// IssueToken generates a signed token for the user.
func (s *HMACStrategy) IssueToken(userID int64) (string, error) {
	if userID <= 0 {
		return "", fmt.Errorf("issue token: invalid user id %d", userID)
	}
	expires := s.now().Add(s.ttl).Unix()
	payload := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf("%d:%d", userID, expires)))
	return payload + "." + s.signer.Sign([]byte(payload)), nil
}

// ParseToken validates token and returns the encoded user ID.
func (s *HMACStrategy) ParseToken(token string) (int64, error) {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok || !s.signer.Verify([]byte(payload), sig) {
		return 0, ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return 0, ErrInvalidToken
	}
	idPart, expPart, ok := strings.Cut(string(raw), ":")
	if !ok {
		return 0, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || userID <= 0 {
		return 0, ErrInvalidToken
	}
	expires, err := strconv.ParseInt(expPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	if !s.now().Before(time.Unix(expires, 0)) {
		return 0, ErrInvalidToken
	}
	return userID, nil
}

func (s *HMACStrategy) Name() string {
	return "hmac-sha256"
}
