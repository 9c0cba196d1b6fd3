// Package ratelimit throttles generation submissions per account using a
// redis token bucket, with rates drawn from the per-tier policy config.
package ratelimit

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/config"
	obsmetrics "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/observability/metrics"
)

const keyGenerateAccount = "generate:account:%d"

type GenerationLimiter struct {
	enabled    bool
	bucket     *TokenBucket
	policy     *config.PolicyHolder
	log        *zap.Logger
	obsMetrics *obsmetrics.Metrics
}

// NewGenerationLimiter returns a disabled limiter when rate limiting is off;
// callers treat a nil or disabled limiter as allow-all.
func NewGenerationLimiter(cfg config.Config, client *redis.Client, policy *config.PolicyHolder, log *zap.Logger, obsMetrics *obsmetrics.Metrics) (*GenerationLimiter, error) {
	if !cfg.RateLimit.Enabled {
		return &GenerationLimiter{}, nil
	}
	if client == nil {
		return nil, errors.New("rate limit redis addr is required")
	}

	return &GenerationLimiter{
		enabled:    true,
		bucket:     NewTokenBucket(client),
		policy:     policy,
		log:        log.Named("ratelimit"),
		obsMetrics: obsMetrics,
	}, nil
}

func (l *GenerationLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow consumes one submission token for the account at its tier's rate.
// Redis outages fail open: a throttling layer must not take generation down
// with it.
func (l *GenerationLimiter) Allow(ctx context.Context, accountID snowflake.ID, tier string) (*AllowResult, error) {
	if !l.Enabled() {
		return &AllowResult{Allowed: true}, nil
	}

	p := l.policy.TierPolicy(tier)
	if p.GenerateRate <= 0 || p.GenerateBurst <= 0 {
		l.obsMetrics.RecordRateLimitAllowed(ctx, tier, "generations")
		return &AllowResult{Allowed: true}, nil
	}

	key := fmt.Sprintf(keyGenerateAccount, accountID)
	result, err := l.bucket.Allow(ctx, key, p.GenerateRate, p.GenerateBurst)
	if err != nil {
		l.log.Warn("rate limit check failed, allowing request",
			zap.Int64("account_id", int64(accountID)),
			zap.Error(err),
		)
		return &AllowResult{Allowed: true}, nil
	}

	if result.Allowed {
		l.obsMetrics.RecordRateLimitAllowed(ctx, tier, "generations")
	} else {
		l.obsMetrics.RecordRateLimitDenied(ctx, tier, "generations", "tier_rate")
	}
	return result, nil
}
