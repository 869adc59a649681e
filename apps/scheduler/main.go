package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/telecoop/backoffice/internal/authorization"
	"github.com/telecoop/backoffice/internal/billing"
	"github.com/telecoop/backoffice/internal/clock"
	"github.com/telecoop/backoffice/internal/config"
	"github.com/telecoop/backoffice/internal/lock"
	"github.com/telecoop/backoffice/internal/observability"
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

		// Dependencies of the billing engine
		authorization.Module,
		lock.Module,

		// No server module!
		billing.Module,
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
