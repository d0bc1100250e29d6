package finance

import "go.uber.org/fx"

// Module exposes the ledger service via Fx.
var Module = fx.Options(
	fx.Provide(New),
)
