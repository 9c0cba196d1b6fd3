package ledger

import (
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(service.NewService),
)
