package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/camphq/camppay/internal/config"
	"github.com/camphq/camppay/internal/registration/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "sqlite" {
			// Embedded migrations target server databases; local sqlite
			// environments derive the schema from the models.
			return conn.AutoMigrate(&domain.Registration{}, &domain.TrackLock{})
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB, cfg.DBType)
	}),
)
