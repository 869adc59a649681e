package billing

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("billing",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(StartEngine),
)

func StartEngine(lc fx.Lifecycle, engine *Engine) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			runCtx, cancel := context.WithCancel(context.Background())

			go engine.RunForever(runCtx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
