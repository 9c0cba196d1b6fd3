package ratelimit

import (
	"strings"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/config"
)

var Module = fx.Module("rate.limit",
	fx.Provide(
		newRedisClient,
		NewLocker,
		NewGenerationLimiter,
	),
)

// newRedisClient is nil when rate limiting is disabled; dependents treat a
// nil client as "redis not available".
func newRedisClient(cfg config.Config) *redis.Client {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	addr := strings.TrimSpace(cfg.RateLimit.RedisAddr)
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RateLimit.RedisPassword),
		DB:       cfg.RateLimit.RedisDB,
	})
}
