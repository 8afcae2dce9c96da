package notify

import (
	"go.uber.org/fx"

	"github.com/camphq/camppay/internal/config"
)

var Module = fx.Module("notify",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Provider {
	if cfg.SMTP.Host == "" {
		return &NoOpProvider{}
	}
	return NewSMTP(cfg.SMTP)
}
