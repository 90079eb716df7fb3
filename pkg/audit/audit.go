// Package audit is the best-effort sink for the audit events of §3.6/§6:
// it never blocks or fails the caller (engine steps, webhook ingress),
// logging and dropping on a backend outage rather than propagating an
// error into the hot path.
package audit

import (
	"context"
	"log/slog"

	"github.com/soarcore/soarcore/pkg/models"
)

// Store is the subset of *store.AuditRepo the service needs.
type Store interface {
	Append(ctx context.Context, executionID, playbookID string, ev models.AuditEvent) error
}

// Service implements engine.Auditor and webhook.Auditor.
type Service struct {
	store  Store
	logger *slog.Logger
}

// New builds a Service. A nil logger falls back to slog.Default().
func New(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Record appends ev, masking sensitive detail fields first. A store
// failure is logged, never returned — callers in the execution hot path
// must not stall or fail on an audit outage.
func (s *Service) Record(ctx context.Context, executionID, playbookID string, ev models.AuditEvent) {
	ev.Details = maskDetails(ev.Details)
	if err := s.store.Append(ctx, executionID, playbookID, ev); err != nil {
		s.logger.Warn("audit event dropped", "action", ev.Action, "execution_id", executionID, "error", err)
	}
}

// sensitiveKeys are detail fields masked before persistence regardless of
// which step or connector produced them.
var sensitiveKeys = map[string]bool{
	"secret": true, "password": true, "token": true, "api_key": true,
	"authorization": true, "secret_hex": true,
}

// maskDetails redacts known-sensitive keys in place, one level deep —
// audit details are a flat label set (§3.6), never arbitrary nested
// payloads.
func maskDetails(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	masked := make(map[string]any, len(details))
	for k, v := range details {
		if sensitiveKeys[k] {
			masked[k] = "***"
			continue
		}
		masked[k] = v
	}
	return masked
}
