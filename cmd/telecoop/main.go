// Command telecoop runs the whole back office in one process: the HTTP API,
// the billing scheduler, migrations and first-boot seeding. Self-hosted
// deployments run this binary; apps/server and apps/scheduler split the same
// modules across two processes when the API and the scheduler scale apart.
package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/telecoop/backoffice/internal/billing"
	"github.com/telecoop/backoffice/internal/clock"
	"github.com/telecoop/backoffice/internal/config"
	"github.com/telecoop/backoffice/internal/lock"
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

		server.Module,

		lock.Module,
		billing.Module,

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
