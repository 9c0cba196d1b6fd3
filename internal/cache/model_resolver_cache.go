package cache

import (
	"strings"
	"time"

	routerdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/modelrouter/domain"
)

// Model configs change rarely; a short TTL keeps routing off the database
// without making catalog edits invisible for long.
const defaultModelTTL = 30 * time.Second

// ModelResolverCache stores resolved model configs per capability and tier.
type ModelResolverCache interface {
	GetModel(capability, tier string) (*routerdomain.ModelConfig, bool)
	SetModel(capability, tier string, model *routerdomain.ModelConfig)
	InvalidateModel(capability, tier string)
}

type modelResolverCache struct {
	models Cache[string, *routerdomain.ModelConfig]
	ttl    time.Duration
}

func NewModelResolverCache() ModelResolverCache {
	return &modelResolverCache{
		models: NewTTLCache[string, *routerdomain.ModelConfig](),
		ttl:    defaultModelTTL,
	}
}

func (c *modelResolverCache) GetModel(capability, tier string) (*routerdomain.ModelConfig, bool) {
	return c.models.Get(cacheKey(capability, tier))
}

func (c *modelResolverCache) SetModel(capability, tier string, model *routerdomain.ModelConfig) {
	if model == nil {
		return
	}
	c.models.Set(cacheKey(capability, tier), model, c.ttl)
}

func (c *modelResolverCache) InvalidateModel(capability, tier string) {
	c.models.Delete(cacheKey(capability, tier))
}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}
