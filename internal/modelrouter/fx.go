package modelrouter

import (
	"go.uber.org/fx"

	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/cache"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/modelrouter/service"
)

var Module = fx.Module("modelrouter.service",
	fx.Provide(
		cache.NewModelResolverCache,
		service.NewService,
	),
)
