package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"

	capabilitydomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/domain"
)

// Tier is a subscription tier. Routing and latency policy key off it.
type Tier string

const (
	TierTrial      Tier = "trial"
	TierBasic      Tier = "basic"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierTrial:
		return TierTrial, nil
	case TierBasic:
		return TierBasic, nil
	case TierPro:
		return TierPro, nil
	case TierEnterprise:
		return TierEnterprise, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
}

func (t Tier) String() string { return string(t) }

// ModelConfig maps a capability and tier to the concrete vendor model that
// serves it, with its credit price. At most one active row per
// capability and tier pair is marked default.
type ModelConfig struct {
	ID         snowflake.ID                    `gorm:"primaryKey" json:"id"`
	Capability capabilitydomain.CapabilityType `gorm:"index:ix_model_configs_cap_tier" json:"capability"`
	Tier       Tier                            `gorm:"index:ix_model_configs_cap_tier" json:"tier"`
	Provider   string                          `json:"provider"`
	ModelID    string                          `json:"model_id"`
	CreditCost int64                           `json:"credit_cost"`
	IsDefault  bool                            `json:"is_default"`
	IsActive   bool                            `json:"is_active"`
	CreatedAt  time.Time                       `json:"created_at"`
	UpdatedAt  time.Time                       `json:"updated_at"`
}

func (ModelConfig) TableName() string { return "model_configs" }
