package auth

import (
	"go.uber.org/fx"

	"github.com/polkiloo/ordercheckout/internal/config"
)

// Module provides authentication primitives via fx.
var Module = fx.Options(
	fx.Provide(newPasswordHasher),
	fx.Provide(newTokenStrategy),
	fx.Provide(newWebhookVerifier),
)

func newPasswordHasher() PasswordHasher {
	return NewBcryptHasher(0)
}

type strategyParams struct {
	fx.In

	Config *config.Config
}

func newTokenStrategy(p strategyParams) Strategy {
	return NewHMACStrategy(p.Config.JWTSecret, Options{})
}

func newWebhookVerifier(p strategyParams) WebhookVerifier {
	return NewSigner(p.Config.WebhookSecret)
}
