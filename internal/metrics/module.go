package metrics

import "go.uber.org/fx"

// Module provides the service metrics registry.
var Module = fx.Provide(New)
