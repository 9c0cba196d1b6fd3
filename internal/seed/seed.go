// Package seed bootstraps the model catalog so a fresh install can serve
// generations without an operator configuring every capability and tier.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	capabilitydomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/domain"
	routerdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/modelrouter/domain"
)

type defaultModel struct {
	capability capabilitydomain.CapabilityType
	provider   string
	modelID    string
	costByTier map[routerdomain.Tier]int64
}

var defaultModels = []defaultModel{
	{
		capability: capabilitydomain.CapabilityText,
		provider:   "openai",
		modelID:    "gpt-4o-mini",
		costByTier: map[routerdomain.Tier]int64{
			routerdomain.TierTrial:      1,
			routerdomain.TierBasic:      1,
			routerdomain.TierPro:        2,
			routerdomain.TierEnterprise: 2,
		},
	},
	{
		capability: capabilitydomain.CapabilityImage,
		provider:   "replicate",
		modelID:    "black-forest-labs/flux-schnell",
		costByTier: map[routerdomain.Tier]int64{
			routerdomain.TierTrial:      5,
			routerdomain.TierBasic:      5,
			routerdomain.TierPro:        8,
			routerdomain.TierEnterprise: 8,
		},
	},
	{
		capability: capabilitydomain.CapabilityVideo,
		provider:   "replicate",
		modelID:    "minimax/video-01",
		costByTier: map[routerdomain.Tier]int64{
			routerdomain.TierBasic:      25,
			routerdomain.TierPro:        40,
			routerdomain.TierEnterprise: 40,
		},
	},
	{
		capability: capabilitydomain.CapabilityAudio,
		provider:   "replicate",
		modelID:    "minimax/speech-02-turbo",
		costByTier: map[routerdomain.Tier]int64{
			routerdomain.TierBasic:      10,
			routerdomain.TierPro:        15,
			routerdomain.TierEnterprise: 15,
		},
	},
}

// EnsureDefaultModels inserts a default model config for every seeded
// capability and tier pair that has none yet. Existing rows win.
func EnsureDefaultModels(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	now := time.Now().UTC()

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range defaultModels {
			for tier, cost := range m.costByTier {
				var count int64
				if err := tx.Model(&routerdomain.ModelConfig{}).
					Where("capability = ? AND tier = ? AND is_default = ? AND is_active = ?",
						m.capability, tier, true, true).
					Count(&count).Error; err != nil {
					return err
				}
				if count > 0 {
					continue
				}
				if err := tx.Create(&routerdomain.ModelConfig{
					ID:         node.Generate(),
					Capability: m.capability,
					Tier:       tier,
					Provider:   m.provider,
					ModelID:    m.modelID,
					CreditCost: cost,
					IsDefault:  true,
					IsActive:   true,
					CreatedAt:  now,
					UpdatedAt:  now,
				}).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}
