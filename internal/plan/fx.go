package plan

import (
	"github.com/telecoop/backoffice/internal/plan/repository"
	"github.com/telecoop/backoffice/internal/plan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("plan.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
