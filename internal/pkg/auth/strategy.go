package auth

import "time"

// Strategy issues and verifies user session tokens.
type Strategy interface {
	IssueToken(userID int64) (string, error)
	ParseToken(token string) (int64, error)
	Name() string
}

// Options tunes token strategies.
type Options struct {
	TTL time.Duration
	Now func() time.Time
}

// WebhookVerifier checks signatures attached to payment gateway callbacks.
type WebhookVerifier interface {
	Verify(payload []byte, signature string) bool
}
