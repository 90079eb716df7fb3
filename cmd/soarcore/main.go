// soarcore is the SOAR playbook execution engine: webhook ingress,
// playbook/execution/approval/connector CRUD, the step interpreter and
// its worker pool, and the SLA/health monitor, all wired from one
// process.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/soarcore/soarcore/pkg/api"
	"github.com/soarcore/soarcore/pkg/audit"
	"github.com/soarcore/soarcore/pkg/config"
	"github.com/soarcore/soarcore/pkg/connector"
	"github.com/soarcore/soarcore/pkg/connector/builtin"
	"github.com/soarcore/soarcore/pkg/engine"
	"github.com/soarcore/soarcore/pkg/metrics"
	"github.com/soarcore/soarcore/pkg/models"
	"github.com/soarcore/soarcore/pkg/queue"
	"github.com/soarcore/soarcore/pkg/sla"
	"github.com/soarcore/soarcore/pkg/store"
	"github.com/soarcore/soarcore/pkg/webhook"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
		log.Printf("continuing with existing environment variables")
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	ctx := context.Background()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}

	db, err := store.Open(ctx, cfg.Store.DSN, cfg.Store.MaxConns, cfg.Store.MigrateOnBoot)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()
	log.Println("connected to postgres")

	auditSvc := audit.New(db.Audit, nil)
	metricsReg := metrics.New()

	registry := connector.NewRegistry()
	if err := loadConnectors(ctx, db.Connectors, registry); err != nil {
		log.Fatalf("failed to load connectors: %v", err)
	}
	invoker := connector.NewInvoker(registry, metricsReg)

	eng := engine.New(db.Executions, db.Approvals, db.Playbooks, invoker, auditSvc, metricsReg, engine.Config{
		MaxStepExecutions:  cfg.Engine.MaxStepExecutions,
		DefaultStepTimeout: cfg.Engine.DefaultStepTimeout,
	})

	fallbackPolicy := models.SLAPolicy{
		Scope:         "default",
		AcknowledgeMS: cfg.SLA.AcknowledgeMS,
		ContainmentMS: cfg.SLA.ContainmentMS,
		ResolutionMS:  cfg.SLA.ResolutionMS,
	}
	slaSelector := sla.NewSelector(db.SLAPolicies, fallbackPolicy)
	starter := queue.NewStarter(db.Executions, slaSelector)

	pool := queue.NewWorkerPool(cfg.Queue.WorkerCount, "soarcore", db.Executions, db.Playbooks, eng,
		cfg.Queue.ClaimLockTimeout, cfg.Queue.PollInterval, nil)
	pool.Start(ctx)
	defer pool.Stop()
	log.Printf("started %d execution workers", cfg.Queue.WorkerCount)

	limiter, nonces := buildIngressCaches(cfg.Redis)
	ingress := webhook.New(db.Webhooks, db.Triggers, db.Playbooks, starter, auditSvc, metricsReg, limiter, nonces, webhook.Config{
		BurstLimit:            cfg.Webhook.BurstLimit,
		GlobalRequestsPerMin:  cfg.Webhook.GlobalRequestsPerMin,
		MaxBodyBytes:          cfg.Webhook.MaxBodyBytes,
		FreshnessWindow:       cfg.Webhook.FreshnessWindow,
		NonceCacheTTL:         cfg.Webhook.NonceCacheTTL,
		FloodWindow:           cfg.Webhook.FloodWindow,
		PlaybookFloodLimit:    cfg.Webhook.PlaybookFloodLimit,
		GlobalFloodLimit:      cfg.Webhook.GlobalFloodLimit,
		SustainedAbuseStrikes: cfg.Webhook.SustainedAbuseStrikes,
	})

	healthMonitor := sla.NewHealthMonitor(db.Executions, db.Approvals, db.Webhooks, auditSvc, nil)
	approvalSweeper := sla.NewApprovalSweeper(db.Approvals, db.Executions, db.Playbooks, eng, nil, nil)
	scheduler, err := sla.NewScheduler(healthMonitor, approvalSweeper, cfg.SLA.HealthSweepInterval, cfg.SLA.ApprovalSweepCron, nil)
	if err != nil {
		log.Fatalf("failed to build sla scheduler: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()
	log.Println("started sla health monitor and approval sweeper")

	server := api.NewServer(db.Playbooks, db.Executions, db.Approvals, db.Connectors,
		starter, eng, invoker, ingress, db, cfg.Engine.DefaultStepTimeout)
	server.SetWorkerPool(pool)
	server.SetMetrics(metricsReg)
	if err := server.ValidateWiring(); err != nil {
		log.Fatalf("server wiring incomplete: %v", err)
	}

	go func() {
		log.Printf("http server listening on %s", cfg.Server.Addr)
		if err := server.Start(cfg.Server.Addr); err != nil {
			slog.Error("http server stopped", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("error shutting down http server: %v", err)
	}
}

// loadConnectors populates registry with every stored connector. Only
// "slack" connectors have an in-tree builtin.Implementation (§1
// Non-goals); records of any other type are skipped and not registered,
// so invoking them fails with NOT_FOUND.
func loadConnectors(ctx context.Context, connectors *store.ConnectorRepo, registry *connector.Registry) error {
	records, err := connectors.List(ctx)
	if err != nil {
		return err
	}
	for _, rec := range records {
		impl := implementationFor(rec)
		if impl == nil {
			continue
		}
		registry.Register(rec, impl)
	}
	return nil
}

func implementationFor(rec models.Connector) connector.Implementation {
	switch rec.Type {
	case "slack":
		token, _ := rec.Config["token"].(string)
		channelID, _ := rec.Config["channel_id"].(string)
		apiURL, _ := rec.Config["api_url"].(string)
		return builtin.NewSlackConnector(token, channelID, apiURL, 10*time.Second)
	default:
		return nil
	}
}

// buildIngressCaches picks Redis-backed rate-limit/nonce caches when
// cfg.Redis.Addr is configured, falling back to the in-process
// implementations otherwise (§9 design note: never a module-level
// singleton, each process owns its own cache).
func buildIngressCaches(cfg config.RedisConfig) (webhook.Limiter, webhook.NonceCache) {
	if cfg.Addr == "" {
		return webhook.NewMemoryLimiter(), webhook.NewMemoryNonceCache()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return webhook.NewRedisLimiter(client, "soarcore:ratelimit"), webhook.NewRedisNonceCache(client, "soarcore:nonce")
}
