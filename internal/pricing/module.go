package pricing

import (
	"go.uber.org/fx"

	"github.com/polkiloo/ordercheckout/internal/config"
)

// Module provides the pricing engine configured from application settings.
var Module = fx.Provide(newEngine)

func newEngine(cfg *config.Config) (*Engine, error) {
	policy, err := ParsePolicy(cfg.DiscountPolicy)
	if err != nil {
		return nil, err
	}
	return NewEngine(policy, cfg.Currency), nil
}
