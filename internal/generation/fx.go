package generation

import (
	"go.uber.org/fx"

	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/generation/service"
)

var Module = fx.Module("generation.service",
	fx.Provide(service.NewService),
)
