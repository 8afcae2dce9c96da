package sweeper

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("sweeper",
	fx.Provide(New),
	fx.Invoke(runSweeper),
)

func runSweeper(lc fx.Lifecycle, s *Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go s.RunForever(ctx)

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
