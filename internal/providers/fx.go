package providers

import (
	"github.com/telecoop/backoffice/internal/providers/email"
	"github.com/telecoop/backoffice/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
