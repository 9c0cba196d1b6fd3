package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// TierPolicy is the per-subscription-tier policy knob set. LatencyBudget is
// an artificial delay applied uniformly after a capability call completes to
// equalize perceived responsiveness across tiers; it is not a timeout.
type TierPolicy struct {
	Tier          string        `mapstructure:"tier"`
	LatencyBudget time.Duration `mapstructure:"latencyBudget"`
	GenerateRate  float64       `mapstructure:"generateRate"`
	GenerateBurst int           `mapstructure:"generateBurst"`
}

// PolicyConfig is the hot-reloadable portion of configuration.
type PolicyConfig struct {
	Tiers []TierPolicy `mapstructure:"tiers"`
}

func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		Tiers: []TierPolicy{
			{Tier: "trial", LatencyBudget: 8 * time.Second, GenerateRate: 0.2, GenerateBurst: 2},
			{Tier: "basic", LatencyBudget: 4 * time.Second, GenerateRate: 1, GenerateBurst: 5},
			{Tier: "pro", LatencyBudget: 1 * time.Second, GenerateRate: 5, GenerateBurst: 20},
			{Tier: "enterprise", LatencyBudget: 0, GenerateRate: 20, GenerateBurst: 50},
		},
	}
}

// PolicyHolder exposes the current PolicyConfig and reloads it when the
// backing file changes.
type PolicyHolder struct {
	current atomic.Value // holds PolicyConfig
}

func NewPolicyHolder() (*PolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("policy")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/studio/config")
	v.AddConfigPath("/etc/studio")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STUDIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &PolicyHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultPolicyConfig())
		return holder, nil
	}

	var cfg PolicyConfig
	if err := v.UnmarshalKey("policy", &cfg); err != nil {
		return nil, err
	}
	if err := validatePolicyConfig(cfg); err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PolicyConfig
		if err := v.UnmarshalKey("policy", &updated); err != nil {
			log.Printf("[policy-config] reload failed: %v", err)
			return
		}
		if err := validatePolicyConfig(updated); err != nil {
			log.Printf("[policy-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[policy-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPolicyHolder returns a holder pinned to the given config. Used in
// tests and embedded setups where no policy file exists.
func NewStaticPolicyHolder(cfg PolicyConfig) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *PolicyHolder) Get() PolicyConfig {
	return h.current.Load().(PolicyConfig)
}

// TierPolicy returns the policy for the given tier, falling back to zero
// values when the tier is not configured.
func (h *PolicyHolder) TierPolicy(tier string) TierPolicy {
	tier = strings.ToLower(strings.TrimSpace(tier))
	for _, p := range h.Get().Tiers {
		if strings.ToLower(p.Tier) == tier {
			return p
		}
	}
	return TierPolicy{Tier: tier}
}

func validatePolicyConfig(cfg PolicyConfig) error {
	if len(cfg.Tiers) == 0 {
		return errors.New("policy.tiers cannot be empty")
	}
	for _, p := range cfg.Tiers {
		if strings.TrimSpace(p.Tier) == "" {
			return errors.New("policy tier name cannot be empty")
		}
		if p.LatencyBudget < 0 {
			return errors.New("policy latencyBudget cannot be negative")
		}
	}
	return nil
}
