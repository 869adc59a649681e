package napbox

import (
	"github.com/telecoop/backoffice/internal/napbox/repository"
	"github.com/telecoop/backoffice/internal/napbox/service"
	"go.uber.org/fx"
)

var Module = fx.Module("napbox.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
