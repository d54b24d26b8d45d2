package core

import (
	"fmt"
	"strings"
	"time"
)

// DefaultExpiryNotice is sent back to an owner whose reply arrived after
// the reply window closed. It is the only unsolicited outbound the relay
// ever produces.
const DefaultExpiryNotice = "Your reply window has expired, so this message was not delivered."

const (
	defaultContextTTL    = 60 * time.Minute
	defaultSendTimeout   = 15 * time.Second
	defaultSweepInterval = time.Hour
)

type RelayConfig struct {
	ContextTTLMinutes    int    `koanf:"context_ttl_minutes" mapstructure:"context_ttl_minutes"`
	SendTimeoutSeconds   int    `koanf:"send_timeout_seconds" mapstructure:"send_timeout_seconds"`
	SweepIntervalMinutes int    `koanf:"sweep_interval_minutes" mapstructure:"sweep_interval_minutes"`
	ExpiryNotice         string `koanf:"expiry_notice" mapstructure:"expiry_notice"`

	// Activity retention is opt-in: the sweep leaves the audit trail alone
	// unless at least one bound is configured.
	ActivityTTLDays int `koanf:"activity_ttl_days" mapstructure:"activity_ttl_days"`
	ActivityRowCap  int `koanf:"activity_row_cap" mapstructure:"activity_row_cap"`
}

func (r RelayConfig) ContextTTL() time.Duration {
	if r.ContextTTLMinutes > 0 {
		return time.Duration(r.ContextTTLMinutes) * time.Minute
	}
	return defaultContextTTL
}

func (r RelayConfig) SendTimeout() time.Duration {
	if r.SendTimeoutSeconds > 0 {
		return time.Duration(r.SendTimeoutSeconds) * time.Second
	}
	return defaultSendTimeout
}

func (r RelayConfig) SweepInterval() time.Duration {
	if r.SweepIntervalMinutes > 0 {
		return time.Duration(r.SweepIntervalMinutes) * time.Minute
	}
	return defaultSweepInterval
}

func (r RelayConfig) ExpiryNoticeBody() string {
	if strings.TrimSpace(r.ExpiryNotice) != "" {
		return r.ExpiryNotice
	}
	return DefaultExpiryNotice
}

func (r RelayConfig) ActivityRetention() ActivityRetentionPolicy {
	policy := ActivityRetentionPolicy{}
	if r.ActivityTTLDays > 0 {
		policy.TTL = time.Duration(r.ActivityTTLDays) * 24 * time.Hour
	}
	if r.ActivityRowCap > 0 {
		policy.RowCap = r.ActivityRowCap
	}
	return policy
}

type WebhookConfig struct {
	PublicURL        string `koanf:"public_url" mapstructure:"public_url"`
	SkipVerification bool   `koanf:"skip_verification" mapstructure:"skip_verification"`
}

type Config struct {
	ServiceName string        `koanf:"service_name" mapstructure:"service_name"`
	Relay       RelayConfig   `koanf:"relay" mapstructure:"relay"`
	Webhook     WebhookConfig `koanf:"webhook" mapstructure:"webhook"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "relay",
		Relay: RelayConfig{
			ContextTTLMinutes:    60,
			SendTimeoutSeconds:   15,
			SweepIntervalMinutes: 60,
			ExpiryNotice:         DefaultExpiryNotice,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Relay.ContextTTLMinutes < 0 {
		return fmt.Errorf("core: relay.context_ttl_minutes must not be negative")
	}
	if c.Relay.SendTimeoutSeconds < 0 {
		return fmt.Errorf("core: relay.send_timeout_seconds must not be negative")
	}
	if c.Relay.SweepIntervalMinutes < 0 {
		return fmt.Errorf("core: relay.sweep_interval_minutes must not be negative")
	}
	if c.Relay.ActivityTTLDays < 0 {
		return fmt.Errorf("core: relay.activity_ttl_days must not be negative")
	}
	if c.Relay.ActivityRowCap < 0 {
		return fmt.Errorf("core: relay.activity_row_cap must not be negative")
	}
	return nil
}
