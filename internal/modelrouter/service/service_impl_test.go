package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	capabilitydomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/domain"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/config"
	routerdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/modelrouter/domain"
)

func newTestService(t *testing.T) routerdomain.Service {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&routerdomain.ModelConfig{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(Params{
		DB:     conn,
		Log:    zap.NewNop(),
		GenID:  node,
		Policy: config.NewStaticPolicyHolder(config.DefaultPolicyConfig()),
	})
}

func TestResolveModelReturnsDefault(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpsertModel(ctx, routerdomain.UpsertModelRequest{
		Capability: capabilitydomain.CapabilityText,
		Tier:       routerdomain.TierPro,
		Provider:   "openai",
		ModelID:    "gpt-4o",
		CreditCost: 5,
		IsDefault:  true,
	})
	require.NoError(t, err)

	model, err := svc.ResolveModel(ctx, capabilitydomain.CapabilityText, routerdomain.TierPro)
	require.NoError(t, err)
	assert.Equal(t, "openai", model.Provider)
	assert.Equal(t, "gpt-4o", model.ModelID)
	assert.Equal(t, int64(5), model.CreditCost)
}

func TestResolveModelNotConfigured(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ResolveModel(context.Background(), capabilitydomain.CapabilityVideo, routerdomain.TierTrial)
	assert.ErrorIs(t, err, routerdomain.ErrModelNotConfigured)
}

func TestResolveModelRejectsUnknownTier(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ResolveModel(context.Background(), capabilitydomain.CapabilityText, routerdomain.Tier("platinum"))
	assert.ErrorIs(t, err, routerdomain.ErrUnknownTier)
}

func TestUpsertModelDemotesPreviousDefault(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpsertModel(ctx, routerdomain.UpsertModelRequest{
		Capability: capabilitydomain.CapabilityImage,
		Tier:       routerdomain.TierBasic,
		Provider:   "replicate",
		ModelID:    "stability-ai/sdxl",
		CreditCost: 10,
		IsDefault:  true,
	})
	require.NoError(t, err)

	_, err = svc.UpsertModel(ctx, routerdomain.UpsertModelRequest{
		Capability: capabilitydomain.CapabilityImage,
		Tier:       routerdomain.TierBasic,
		Provider:   "replicate",
		ModelID:    "black-forest-labs/flux-schnell",
		CreditCost: 8,
		IsDefault:  true,
	})
	require.NoError(t, err)

	model, err := svc.ResolveModel(ctx, capabilitydomain.CapabilityImage, routerdomain.TierBasic)
	require.NoError(t, err)
	assert.Equal(t, "black-forest-labs/flux-schnell", model.ModelID)

	models, err := svc.ListModels(ctx, routerdomain.ListModelsRequest{
		Capability: capabilitydomain.CapabilityImage,
		Tier:       routerdomain.TierBasic,
	})
	require.NoError(t, err)
	require.Len(t, models, 2)

	defaults := 0
	for _, m := range models {
		if m.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestLatencyBudgetFollowsTierPolicy(t *testing.T) {
	svc := newTestService(t)

	assert.Equal(t, 8*time.Second, svc.LatencyBudget(routerdomain.TierTrial))
	assert.Equal(t, time.Duration(0), svc.LatencyBudget(routerdomain.TierEnterprise))
	assert.Equal(t, time.Duration(0), svc.LatencyBudget(routerdomain.Tier("unknown")))
}
