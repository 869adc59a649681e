package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/telecoop/backoffice/internal/clock"
	"github.com/telecoop/backoffice/internal/config"
	"github.com/telecoop/backoffice/internal/migration"
	"github.com/telecoop/backoffice/internal/observability"
	"github.com/telecoop/backoffice/internal/seed"
	"github.com/telecoop/backoffice/internal/server"
	"github.com/telecoop/backoffice/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP surface plus every domain service it fronts.
		server.Module,

		// First-boot bootstrap: admin account and the starter plan catalog.
		fx.Invoke(seed.EnsureAdminUser),
		fx.Invoke(seed.EnsureDefaultPlans),
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
