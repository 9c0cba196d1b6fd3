package service

import (
	"context"
	"fmt"
	"strings"

	capabilitydomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Providers   []capabilitydomain.Provider `group:"capability_providers"`
	Credentials capabilitydomain.CredentialSource
}

// Service routes an invoke request to the vendor adapter named by the model
// router and resolves the credential to call it with.
type Service struct {
	log         *zap.Logger
	providers   map[string]capabilitydomain.Provider
	credentials capabilitydomain.CredentialSource
}

func NewService(p Params) (capabilitydomain.Invoker, error) {
	providers := make(map[string]capabilitydomain.Provider, len(p.Providers))
	for _, provider := range p.Providers {
		name := strings.ToLower(strings.TrimSpace(provider.Name()))
		if name == "" {
			return nil, fmt.Errorf("capability provider with empty name")
		}
		if _, exists := providers[name]; exists {
			return nil, fmt.Errorf("capability provider %q registered twice", name)
		}
		providers[name] = provider
	}

	return &Service{
		log:         p.Log.Named("capability.service"),
		providers:   providers,
		credentials: p.Credentials,
	}, nil
}

func (s *Service) Invoke(ctx context.Context, req capabilitydomain.InvokeRequest) (*capabilitydomain.InvokeResult, error) {
	if _, err := capabilitydomain.ParseCapabilityType(string(req.Capability)); err != nil {
		return nil, err
	}

	name := strings.ToLower(strings.TrimSpace(req.Provider))
	provider, ok := s.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", capabilitydomain.ErrProviderNotRegistered, req.Provider)
	}
	if !provider.Supports(req.Capability) {
		return nil, fmt.Errorf("%w: provider %q does not support %s", capabilitydomain.ErrProviderNotRegistered, name, req.Capability)
	}

	credential := capabilitydomain.Credential{}
	if s.credentials != nil {
		own, err := s.credentials.CredentialFor(ctx, req.AccountID, name)
		if err != nil {
			// BYOK lookup failure degrades to the platform credential.
			s.log.Warn("provider credential lookup failed",
				zap.String("provider", name),
				zap.Error(err),
			)
		} else if own != nil {
			credential = *own
		}
	}

	result, err := provider.Invoke(ctx, capabilitydomain.ProviderRequest{
		InvokeRequest: req,
		Credential:    credential,
	})
	if err != nil {
		return nil, err
	}
	if result.ProviderName == "" {
		result.ProviderName = name
	}
	return result, nil
}

var _ capabilitydomain.Invoker = (*Service)(nil)
