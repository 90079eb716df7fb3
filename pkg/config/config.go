// Package config loads and validates soarcore's startup configuration:
// rate limits, freshness windows, the loop guard, SLA default thresholds,
// and queue/worker tuning. The on-disk shape of soarcore.yaml is the
// yamlConfig struct in loader.go.
package config

import "time"

// Config is the fully resolved, validated runtime configuration.
type Config struct {
	configDir string

	Webhook WebhookConfig
	Engine  EngineConfig
	SLA     SLAConfig
	Queue   QueueConfig
	Server  ServerConfig
	Store   StoreConfig
	Redis   RedisConfig
}

// WebhookConfig tunes the ingress pipeline of the webhook check chain.
type WebhookConfig struct {
	BurstLimit           int           `yaml:"burst_limit"`
	GlobalRequestsPerMin int           `yaml:"global_requests_per_min"`
	MaxBodyBytes         int64         `yaml:"max_body_bytes"`
	FreshnessWindow      time.Duration `yaml:"freshness_window"`
	NonceCacheTTL        time.Duration `yaml:"nonce_cache_ttl"`
	FloodWindow          time.Duration `yaml:"flood_window"`
	PlaybookFloodLimit   int           `yaml:"playbook_flood_limit"`
	GlobalFloodLimit     int           `yaml:"global_flood_limit"`
	SustainedAbuseStrikes int          `yaml:"sustained_abuse_strikes"`
}

// EngineConfig bounds the step-interpreter loop.
type EngineConfig struct {
	MaxStepExecutions  int           `yaml:"max_step_executions"`
	MaxStepTimeout     time.Duration `yaml:"max_step_timeout"`
	DefaultStepTimeout time.Duration `yaml:"default_step_timeout"`
	ClaimPollInterval  time.Duration `yaml:"claim_poll_interval"`
}

// SLAConfig holds the global-default SLA policy, used when a playbook or
// severity-specific policy is not configured (§4.7 scope order).
type SLAConfig struct {
	AcknowledgeMS int64 `yaml:"acknowledge_ms"`
	ContainmentMS int64 `yaml:"containment_ms"`
	ResolutionMS  int64 `yaml:"resolution_ms"`

	HealthSweepInterval time.Duration `yaml:"health_sweep_interval"`
	ApprovalSweepCron   string        `yaml:"approval_sweep_cron"`
}

// QueueConfig tunes the execution worker pool.
type QueueConfig struct {
	WorkerCount      int           `yaml:"worker_count"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	ClaimLockTimeout time.Duration `yaml:"claim_lock_timeout"`
}

// ServerConfig is the HTTP listener configuration.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// StoreConfig holds the Postgres connection settings.
type StoreConfig struct {
	DSN         string `yaml:"dsn"`
	MaxConns    int32  `yaml:"max_conns"`
	MigrateOnBoot bool `yaml:"migrate_on_boot"`
}

// RedisConfig holds the nonce/rate-limit cache connection settings. When
// Addr is empty the webhook ingress falls back to an in-process cache
// (Design Note §9: "not a module-level singleton" — each ingress instance
// owns its own cache).
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ConfigDir returns the directory configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}
