// Package metrics is the Prometheus wiring for the closed counter/
// histogram set of §3.6/§8: step and execution outcomes, connector
// invocation latency, and the webhook ingress pipeline's accept/reject
// breakdown.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/soarcore/soarcore/pkg/models"
	"github.com/soarcore/soarcore/pkg/webhook"
)

// Registry owns its own prometheus.Registry rather than the global
// default one, so a process can run more than one instance in tests
// without metric-name collisions.
type Registry struct {
	reg *prometheus.Registry

	stepCompletedTotal   *prometheus.CounterVec
	stepFailedTotal      *prometheus.CounterVec
	stepRetriedTotal     *prometheus.CounterVec
	stepDurationSeconds  *prometheus.HistogramVec
	executionFinishedTotal *prometheus.CounterVec

	connectorInvocationsTotal *prometheus.CounterVec
	connectorLatencySeconds   *prometheus.HistogramVec

	webhookReceivedTotal prometheus.Counter
	webhookAcceptedTotal prometheus.Counter
	webhookDroppedTotal  prometheus.Counter
	webhookRejectedTotal *prometheus.CounterVec
	webhookProcessingSeconds prometheus.Histogram
}

// New builds a Registry with every metric registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		stepCompletedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soarcore_step_completed_total", Help: "Steps completed, by step type.",
		}, []string{"step_type"}),
		stepFailedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soarcore_step_failed_total", Help: "Steps that failed terminally, by step type.",
		}, []string{"step_type"}),
		stepRetriedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soarcore_step_retried_total", Help: "Step retry attempts, by step type.",
		}, []string{"step_type"}),
		stepDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "soarcore_step_duration_seconds", Help: "Step execution duration.",
			Buckets: []float64{.05, .1, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"step_type"}),
		executionFinishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soarcore_execution_finished_total", Help: "Executions reaching a terminal state, by state.",
		}, []string{"state"}),
		connectorInvocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soarcore_connector_invocations_total", Help: "Connector invocations, by connector and outcome.",
		}, []string{"connector_id", "outcome"}),
		connectorLatencySeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "soarcore_connector_latency_seconds", Help: "Connector invocation latency.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"connector_id"}),
		webhookReceivedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soarcore_webhook_received_total", Help: "Webhook POSTs received.",
		}),
		webhookAcceptedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soarcore_webhook_accepted_total", Help: "Webhook POSTs accepted (matched a trigger).",
		}),
		webhookDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soarcore_webhook_dropped_total", Help: "Webhook POSTs dropped (no trigger match).",
		}),
		webhookRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soarcore_webhook_rejected_total", Help: "Webhook POSTs rejected, by reason code.",
		}, []string{"code"}),
		webhookProcessingSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "soarcore_webhook_processing_seconds", Help: "Webhook ingress pipeline processing time.",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		}),
	}

	reg.MustRegister(
		r.stepCompletedTotal, r.stepFailedTotal, r.stepRetriedTotal, r.stepDurationSeconds, r.executionFinishedTotal,
		r.connectorInvocationsTotal, r.connectorLatencySeconds,
		r.webhookReceivedTotal, r.webhookAcceptedTotal, r.webhookDroppedTotal, r.webhookRejectedTotal, r.webhookProcessingSeconds,
	)
	return r
}

// Registerer exposes the underlying registry for pkg/api's /metrics
// handler (promhttp.HandlerFor).
func (r *Registry) Registerer() *prometheus.Registry {
	return r.reg
}

// engine.MetricsRecorder

func (r *Registry) StepCompleted(stepType string, duration time.Duration) {
	r.stepCompletedTotal.WithLabelValues(stepType).Inc()
	r.stepDurationSeconds.WithLabelValues(stepType).Observe(duration.Seconds())
}

func (r *Registry) StepFailed(stepType string) {
	r.stepFailedTotal.WithLabelValues(stepType).Inc()
}

func (r *Registry) StepRetried(stepType string) {
	r.stepRetriedTotal.WithLabelValues(stepType).Inc()
}

func (r *Registry) ExecutionFinished(state models.ExecutionState) {
	r.executionFinishedTotal.WithLabelValues(string(state)).Inc()
}

// connector.StatsSink

func (r *Registry) ObserveConnectorInvocation(connectorID string, success bool, latency time.Duration) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	r.connectorInvocationsTotal.WithLabelValues(connectorID, outcome).Inc()
	r.connectorLatencySeconds.WithLabelValues(connectorID).Observe(latency.Seconds())
}

// webhook.MetricsRecorder

func (r *Registry) IncReceived() {
	r.webhookReceivedTotal.Inc()
}

func (r *Registry) IncAccepted() {
	r.webhookAcceptedTotal.Inc()
}

func (r *Registry) IncDropped() {
	r.webhookDroppedTotal.Inc()
}

func (r *Registry) IncRejected(code webhook.Code) {
	r.webhookRejectedTotal.WithLabelValues(string(code)).Inc()
}

func (r *Registry) ObserveProcessing(d time.Duration) {
	r.webhookProcessingSeconds.Observe(d.Seconds())
}
