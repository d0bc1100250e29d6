package notifier

import "go.uber.org/fx"

// Module exposes the notifier and its sender via Fx.
var Module = fx.Options(
	fx.Provide(NewSender),
	fx.Provide(New),
)
