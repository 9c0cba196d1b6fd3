package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/cache"
	capabilitydomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/domain"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/config"
	routerdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/modelrouter/domain"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Policy *config.PolicyHolder
	Cache  cache.ModelResolverCache `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	policy *config.PolicyHolder
	cache  cache.ModelResolverCache
}

func NewService(p Params) routerdomain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("modelrouter.service"),
		genID:  p.GenID,
		policy: p.Policy,
		cache:  p.Cache,
	}
}

func (s *Service) ResolveModel(ctx context.Context, capability capabilitydomain.CapabilityType, tier routerdomain.Tier) (*routerdomain.ModelConfig, error) {
	if _, err := capabilitydomain.ParseCapabilityType(string(capability)); err != nil {
		return nil, err
	}
	if _, err := routerdomain.ParseTier(string(tier)); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cached, ok := s.cache.GetModel(string(capability), string(tier)); ok {
			return cached, nil
		}
	}

	var model routerdomain.ModelConfig
	err := s.db.WithContext(ctx).
		Where("capability = ? AND tier = ? AND is_default = ? AND is_active = ?", capability, tier, true, true).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, routerdomain.ErrModelNotConfigured
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.SetModel(string(capability), string(tier), &model)
	}
	return &model, nil
}

func (s *Service) LatencyBudget(tier routerdomain.Tier) time.Duration {
	budget := s.policy.TierPolicy(string(tier)).LatencyBudget
	if budget < 0 {
		return 0
	}
	return budget
}

func (s *Service) ListModels(ctx context.Context, req routerdomain.ListModelsRequest) ([]routerdomain.ModelConfig, error) {
	query := s.db.WithContext(ctx).Model(&routerdomain.ModelConfig{})
	if req.Capability != "" {
		query = query.Where("capability = ?", req.Capability)
	}
	if req.Tier != "" {
		query = query.Where("tier = ?", req.Tier)
	}
	if req.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	var models []routerdomain.ModelConfig
	if err := query.Order("capability, tier, provider").Find(&models).Error; err != nil {
		return nil, err
	}
	return models, nil
}

func (s *Service) UpsertModel(ctx context.Context, req routerdomain.UpsertModelRequest) (*routerdomain.ModelConfig, error) {
	if _, err := capabilitydomain.ParseCapabilityType(string(req.Capability)); err != nil {
		return nil, err
	}
	tier, err := routerdomain.ParseTier(string(req.Tier))
	if err != nil {
		return nil, err
	}
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider == "" || strings.TrimSpace(req.ModelID) == "" {
		return nil, errors.New("provider and model_id are required")
	}
	if req.CreditCost < 0 {
		return nil, errors.New("credit_cost must not be negative")
	}

	now := time.Now().UTC()
	model := &routerdomain.ModelConfig{
		ID:         s.genID.Generate(),
		Capability: req.Capability,
		Tier:       tier,
		Provider:   provider,
		ModelID:    req.ModelID,
		CreditCost: req.CreditCost,
		IsDefault:  req.IsDefault,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// A new default demotes the previous one for the pair.
		if req.IsDefault {
			if err := tx.Model(&routerdomain.ModelConfig{}).
				Where("capability = ? AND tier = ? AND is_default = ?", req.Capability, tier, true).
				Updates(map[string]any{"is_default": false, "updated_at": now}).Error; err != nil {
				return err
			}
		}
		return tx.Create(model).Error
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.InvalidateModel(string(req.Capability), string(tier))
	}

	s.log.Info("model config upserted",
		zap.String("capability", string(req.Capability)),
		zap.String("tier", string(tier)),
		zap.String("provider", provider),
		zap.String("model_id", req.ModelID),
	)
	return model, nil
}

var _ routerdomain.Service = (*Service)(nil)
