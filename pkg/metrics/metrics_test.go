package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/soarcore/soarcore/pkg/models"
	"github.com/soarcore/soarcore/pkg/webhook"
)

func TestStepCounters(t *testing.T) {
	r := New()
	r.StepCompleted("action", 250*time.Millisecond)
	r.StepFailed("action")
	r.StepRetried("action")

	assert.Equal(t, float64(1), testutil.ToFloat64(r.stepCompletedTotal.WithLabelValues("action")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.stepFailedTotal.WithLabelValues("action")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.stepRetriedTotal.WithLabelValues("action")))
}

func TestExecutionFinished(t *testing.T) {
	r := New()
	r.ExecutionFinished(models.ExecutionCompleted)
	assert.Equal(t, float64(1), testutil.ToFloat64(r.executionFinishedTotal.WithLabelValues("COMPLETED")))
}

func TestConnectorInvocation(t *testing.T) {
	r := New()
	r.ObserveConnectorInvocation("c1", true, 10*time.Millisecond)
	r.ObserveConnectorInvocation("c1", false, 20*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(r.connectorInvocationsTotal.WithLabelValues("c1", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.connectorInvocationsTotal.WithLabelValues("c1", "failure")))
}

func TestWebhookCounters(t *testing.T) {
	r := New()
	r.IncReceived()
	r.IncAccepted()
	r.IncDropped()
	r.IncRejected(webhook.CodeRateLimited)
	r.ObserveProcessing(5 * time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(r.webhookReceivedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.webhookAcceptedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.webhookDroppedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.webhookRejectedTotal.WithLabelValues(string(webhook.CodeRateLimited))))
}
