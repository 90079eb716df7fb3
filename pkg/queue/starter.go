// Package queue implements the concurrency model of §5: a pool of
// workers claims EXECUTING executions one at a time with a
// FOR UPDATE SKIP LOCKED lease, advances them through the engine, and
// releases the lease when the execution suspends or reaches a terminal
// state. Grounded on the teacher's pkg/queue (Worker's poll/claim/
// heartbeat loop and WorkerPool's lifecycle management), adapted from
// ent-backed session polling to the pgx-backed ExecutionRepo lease
// protocol (§4.7, store.ExecutionRepo.ClaimNext/Renew/Release).
package queue

import (
	"context"
	"strconv"
	"time"

	"github.com/soarcore/soarcore/pkg/ids"
	"github.com/soarcore/soarcore/pkg/jsonpath"
	"github.com/soarcore/soarcore/pkg/models"
	"github.com/soarcore/soarcore/pkg/validator"
)

// ExecutionCreator is the subset of *store.ExecutionRepo the Starter
// needs to create a new execution row.
type ExecutionCreator interface {
	Create(ctx context.Context, ex models.Execution) error
}

// SLAAssigner stamps a new execution with its resolved SLA policy;
// satisfied by *sla.Selector.
type SLAAssigner interface {
	Assign(ctx context.Context, ex *models.Execution, severity string)
}

// Starter implements webhook.Starter and backs the manual execution
// create endpoint (§6): it builds the initial Execution row in the
// EXECUTING state and persists it. It never runs a step itself — a
// worker picks the row up on its next poll (§5's "returns as soon as the
// execution exists" contract).
type Starter struct {
	executions ExecutionCreator
	sla        SLAAssigner
}

// NewStarter builds a Starter. sla may be nil (tests that don't care
// about SLA stamping).
func NewStarter(executions ExecutionCreator, sla SLAAssigner) *Starter {
	return &Starter{executions: executions, sla: sla}
}

// severityPaths are the trigger-data locations checked for a severity
// signal, in order; the first that resolves wins. rule.level matches the
// Wazuh-style alert shape used throughout §8's worked examples.
var severityPaths = []string{"rule.level", "severity", "data.severity"}

func severityFromTrigger(triggerData map[string]any) string {
	for _, path := range severityPaths {
		res := jsonpath.Resolve(any(triggerData), path)
		if res.Found {
			return toSeverityString(res.Value)
		}
	}
	return ""
}

func toSeverityString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}

func initialStepRecords(steps []models.Step) []models.StepRecord {
	out := make([]models.StepRecord, len(steps))
	for i, st := range steps {
		out[i] = models.StepRecord{StepID: st.StepID, State: models.StepPending}
	}
	return out
}

// Start creates an EXECUTING execution bound to pb and returns its id
// immediately; it never blocks on step execution (§4.1, §5). It re-runs
// the playbook validator as a defense-in-depth check (§4.2: "run before
// a playbook version is persisted and again before an execution
// starts") — a version that passed validation at save time could still
// be invalid if the DSL's invariants themselves ever change.
func (s *Starter) Start(ctx context.Context, pb models.Playbook, triggerData map[string]any, source string) (string, error) {
	if result := validator.Validate(pb.DSL); !result.Valid() {
		return "", &validator.Error{Result: result}
	}

	now := time.Now()
	ex := models.Execution{
		ExecutionID:       ids.NewPrefixed("exec"),
		PlaybookID:        pb.PlaybookID,
		PlaybookVersion:   pb.Version,
		State:             models.ExecutionExecuting,
		TriggerData:       triggerData,
		TriggerSource:     source,
		Steps:             initialStepRecords(pb.DSL.Steps),
		WebhookReceivedAt: &now,
		StartedAt:         &now,
		StepIndex:         0,
	}
	if s.sla != nil {
		s.sla.Assign(ctx, &ex, severityFromTrigger(triggerData))
	}
	if err := s.executions.Create(ctx, ex); err != nil {
		return "", err
	}
	return ex.ExecutionID, nil
}
