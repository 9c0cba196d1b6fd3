package domain

import (
	"context"
	"errors"
	"time"

	capabilitydomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/domain"
)

var (
	ErrUnknownTier        = errors.New("unknown subscription tier")
	ErrModelNotConfigured = errors.New("no model configured for capability and tier")
)

type ListModelsRequest struct {
	Capability capabilitydomain.CapabilityType
	Tier       Tier
	ActiveOnly bool
}

type UpsertModelRequest struct {
	Capability capabilitydomain.CapabilityType
	Tier       Tier
	Provider   string
	ModelID    string
	CreditCost int64
	IsDefault  bool
}

// Service resolves which vendor model serves a capability for a tier, and
// the latency policy applied to that tier.
type Service interface {
	// ResolveModel returns the active default model for the pair. Every
	// resolvable pair carries its credit cost, so callers can price the
	// call before making it.
	ResolveModel(ctx context.Context, capability capabilitydomain.CapabilityType, tier Tier) (*ModelConfig, error)

	// LatencyBudget returns the artificial post-call delay for the tier.
	// Zero means no delay.
	LatencyBudget(tier Tier) time.Duration

	ListModels(ctx context.Context, req ListModelsRequest) ([]ModelConfig, error)
	UpsertModel(ctx context.Context, req UpsertModelRequest) (*ModelConfig, error)
}
