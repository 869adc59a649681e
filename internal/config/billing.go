package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingPolicy holds the operator-tunable invoicing policy.
//
// DefaultDueDay is the day-of-month used for a client's first-ever invoice;
// later invoices inherit the due day of the previous one. GraceDays delays the
// pending->overdue transition past the due date.
type BillingPolicy struct {
	DefaultDueDay int `mapstructure:"defaultDueDay"`
	GraceDays     int `mapstructure:"graceDays"`
}

func DefaultBillingPolicy() BillingPolicy {
	return BillingPolicy{
		DefaultDueDay: 30,
		GraceDays:     0,
	}
}

// BillingPolicyHolder exposes the current policy with hot reload.
type BillingPolicyHolder struct {
	current atomic.Value // holds BillingPolicy
}

func NewBillingPolicyHolder() (*BillingPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/telecoop/config") // Volume-mounted config
	v.AddConfigPath("/etc/telecoop")            // System config
	v.AddConfigPath(".")                        // Current directory (dev mode)

	v.SetEnvPrefix("TELECOOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingPolicy()
	v.SetDefault("billing.defaultDueDay", defaults.DefaultDueDay)
	v.SetDefault("billing.graceDays", defaults.GraceDays)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var policy BillingPolicy
	if err := v.UnmarshalKey("billing", &policy); err != nil {
		return nil, err
	}
	if err := validateBillingPolicy(policy); err != nil {
		return nil, err
	}

	holder := &BillingPolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingPolicy
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-policy] reload failed: %v", err)
			return
		}
		if err := validateBillingPolicy(updated); err != nil {
			log.Printf("[billing-policy] invalid policy ignored: %v", err)
			return
		}
		holder.current.Store(updated)
	})

	return holder, nil
}

// StaticBillingPolicyHolder pins a holder to the given policy, with no
// config file and no reloading.
func StaticBillingPolicyHolder(policy BillingPolicy) *BillingPolicyHolder {
	holder := &BillingPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

// Current returns the active billing policy.
func (h *BillingPolicyHolder) Current() BillingPolicy {
	if h == nil {
		return DefaultBillingPolicy()
	}
	if policy, ok := h.current.Load().(BillingPolicy); ok {
		return policy
	}
	return DefaultBillingPolicy()
}

func validateBillingPolicy(policy BillingPolicy) error {
	if policy.DefaultDueDay < 1 || policy.DefaultDueDay > 31 {
		return errors.New("billing.defaultDueDay must be between 1 and 31")
	}
	if policy.GraceDays < 0 {
		return errors.New("billing.graceDays must not be negative")
	}
	return nil
}
