package config

import "time"

// DefaultConfig returns the built-in configuration applied before YAML
// overrides are merged on top (see load in loader.go).
func DefaultConfig() *Config {
	return &Config{
		Webhook: WebhookConfig{
			BurstLimit:            20,
			GlobalRequestsPerMin:  600,
			MaxBodyBytes:          1 << 20, // 1 MiB
			FreshnessWindow:       5 * time.Minute,
			NonceCacheTTL:         5 * time.Minute,
			FloodWindow:           time.Minute,
			PlaybookFloodLimit:    30,
			GlobalFloodLimit:      300,
			SustainedAbuseStrikes: 3,
		},
		Engine: EngineConfig{
			MaxStepExecutions:  100,
			MaxStepTimeout:     10 * time.Minute,
			DefaultStepTimeout: 30 * time.Second,
			ClaimPollInterval:  500 * time.Millisecond,
		},
		SLA: SLAConfig{
			AcknowledgeMS:       5 * 60 * 1000,
			ContainmentMS:       30 * 60 * 1000,
			ResolutionMS:        4 * 60 * 60 * 1000,
			HealthSweepInterval: time.Minute,
			ApprovalSweepCron:   "*/1 * * * *",
		},
		Queue: QueueConfig{
			WorkerCount:      4,
			PollInterval:     time.Second,
			ClaimLockTimeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			MaxConns:      10,
			MigrateOnBoot: true,
		},
	}
}
