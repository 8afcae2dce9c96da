package gateway

import (
	"go.uber.org/fx"

	"github.com/camphq/camppay/internal/gateway/domain"
	"github.com/camphq/camppay/internal/gateway/simplepay"
)

var Module = fx.Module("gateway.client",
	fx.Provide(
		fx.Annotate(simplepay.New, fx.As(new(domain.Client))),
	),
)
