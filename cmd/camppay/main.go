package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/camphq/camppay/internal/catalog"
	"github.com/camphq/camppay/internal/clock"
	"github.com/camphq/camppay/internal/config"
	"github.com/camphq/camppay/internal/gateway"
	"github.com/camphq/camppay/internal/migration"
	"github.com/camphq/camppay/internal/notify"
	"github.com/camphq/camppay/internal/observability"
	"github.com/camphq/camppay/internal/registration"
	"github.com/camphq/camppay/internal/server"
	"github.com/camphq/camppay/internal/sweeper"
	"github.com/camphq/camppay/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domain
		catalog.Module,
		gateway.Module,
		notify.Module,
		registration.Module,
		sweeper.Module,

		server.Module,
	)

	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
