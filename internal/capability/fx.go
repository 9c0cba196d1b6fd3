package capability

import (
	"go.uber.org/fx"

	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/adapters/mock"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/adapters/openai"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/adapters/replicate"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/domain"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/service"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/config"
)

// Module wires the provider registry. The mock provider replaces the real
// vendors when PROVIDERS_USE_MOCK is set, so local environments never need
// vendor credentials.
var Module = fx.Module("capability",
	fx.Provide(
		fx.Annotate(
			newTextProvider,
			fx.ResultTags(`group:"capability_providers"`),
		),
		fx.Annotate(
			newMediaProvider,
			fx.ResultTags(`group:"capability_providers"`),
		),
		fx.Annotate(
			service.NewCredentialStore,
			fx.As(new(domain.CredentialSource)),
		),
		service.NewService,
	),
)

func newTextProvider(cfg config.Config) domain.Provider {
	if cfg.Providers.UseMock {
		return mock.New(mock.WithName("openai"))
	}
	return openai.New(cfg.Providers.OpenAIBaseURL, cfg.Providers.OpenAIAPIKey)
}

func newMediaProvider(cfg config.Config) domain.Provider {
	if cfg.Providers.UseMock {
		return mock.New(mock.WithName("replicate"))
	}
	return replicate.New(cfg.Providers.ReplicateBaseURL, cfg.Providers.ReplicateAPIKey)
}
