package registration

import (
	"go.uber.org/fx"

	"github.com/camphq/camppay/internal/registration/domain"
	"github.com/camphq/camppay/internal/registration/repository"
	"github.com/camphq/camppay/internal/registration/service"
)

var Module = fx.Module("registration.service",
	fx.Provide(
		repository.Provide,
		fx.Annotate(service.New, fx.As(new(domain.Service))),
	),
)
