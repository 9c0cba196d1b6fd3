// Package mock provides a deterministic in-process provider for local
// development and tests. It serves every capability.
package mock

import (
	"context"
	"fmt"
	"sync"

	capabilitydomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/domain"
)

const defaultName = "mock"

type Provider struct {
	mu       sync.Mutex
	name     string
	failWith string
	delegate func(ctx context.Context, req capabilitydomain.ProviderRequest) (*capabilitydomain.InvokeResult, error)
	calls    []capabilitydomain.ProviderRequest
}

type Option func(*Provider)

// WithName overrides the provider name, letting tests register several
// mocks side by side.
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// WithFailure makes every invocation report an unsuccessful result.
func WithFailure(msg string) Option {
	return func(p *Provider) { p.failWith = msg }
}

// WithDelegate replaces the canned response entirely.
func WithDelegate(fn func(ctx context.Context, req capabilitydomain.ProviderRequest) (*capabilitydomain.InvokeResult, error)) Option {
	return func(p *Provider) { p.delegate = fn }
}

func New(opts ...Option) *Provider {
	p := &Provider{name: defaultName}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Supports(capabilitydomain.CapabilityType) bool { return true }

func (p *Provider) Invoke(ctx context.Context, req capabilitydomain.ProviderRequest) (*capabilitydomain.InvokeResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()

	if p.delegate != nil {
		return p.delegate(ctx, req)
	}
	if p.failWith != "" {
		return &capabilitydomain.InvokeResult{
			Success:      false,
			ProviderName: p.name,
			ErrMessage:   p.failWith,
		}, nil
	}

	result := &capabilitydomain.InvokeResult{
		Success:      true,
		ProviderName: p.name,
	}
	if req.Capability.IsMedia() {
		result.OutputURL = fmt.Sprintf("https://cdn.example.invalid/%s/%s.bin", p.name, req.ModelID)
	} else {
		result.Output = fmt.Sprintf("mock output for %q via %s", req.Prompt, req.ModelID)
	}
	return result, nil
}

// Calls returns a copy of every request the provider has received.
func (p *Provider) Calls() []capabilitydomain.ProviderRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]capabilitydomain.ProviderRequest, len(p.calls))
	copy(out, p.calls)
	return out
}

var _ capabilitydomain.Provider = (*Provider)(nil)
