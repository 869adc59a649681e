package auth

import (
	"github.com/telecoop/backoffice/internal/auth/repository"
	"github.com/telecoop/backoffice/internal/auth/service"
	"github.com/telecoop/backoffice/internal/auth/session"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
	session.Module,
)
