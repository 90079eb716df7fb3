// Package webhook implements the ingress check pipeline of §4.1: an
// ordered chain of rejections (rate limit, body cap, freshness, replay,
// signature, status, flood control, schema) guarding the trigger
// evaluator and execution engine from malformed or abusive alert posts.
package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/soarcore/soarcore/pkg/models"
	"github.com/soarcore/soarcore/pkg/trigger"
)

// WebhookStore is the subset of *store.WebhookRepo the ingress needs.
type WebhookStore interface {
	Get(ctx context.Context, webhookID string) (models.Webhook, error)
	Save(ctx context.Context, wh models.Webhook) error
}

// TriggerStore is the subset of *store.TriggerRepo the ingress needs.
type TriggerStore interface {
	Get(ctx context.Context, webhookID string) (models.Trigger, error)
}

// PlaybookStore is the subset of *store.PlaybookRepo the ingress needs.
type PlaybookStore interface {
	GetActive(ctx context.Context, playbookID string) (models.Playbook, error)
}

// Starter hands a matched alert to the execution engine. The production
// implementation creates the Execution row and enqueues it for a worker
// to claim (§5); it returns as soon as the execution exists, not when it
// finishes.
type Starter interface {
	Start(ctx context.Context, pb models.Playbook, triggerData map[string]any, source string) (executionID string, err error)
}

// Auditor records audit events for accepted requests only (§4.1: "a
// dropped request emits a metric only, to avoid amplifying floods").
type Auditor interface {
	Record(ctx context.Context, executionID, playbookID string, ev models.AuditEvent)
}

// MetricsRecorder tracks the ingress counters of §3.6/§8.
type MetricsRecorder interface {
	IncReceived()
	IncAccepted()
	IncDropped()
	IncRejected(code Code)
	ObserveProcessing(d time.Duration)
}

// Request is one inbound webhook POST, already read off the wire by the
// HTTP layer (pkg/api).
type Request struct {
	WebhookID    string
	PeerIP       string
	Body         []byte
	Timestamp    string // value of the timestamp header, "" if absent
	Signature    string // value of the signature header, "" if absent
}

// Outcome is what the ingress did with a Request that passed every check.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeDropped  Outcome = "dropped"
)

// Result is returned for every Request that clears the check pipeline.
type Result struct {
	Outcome     Outcome
	ExecutionID string // set only when Outcome == OutcomeAccepted
}

// Ingress implements the §4.1 pipeline. One Ingress is shared by every
// inbound request; it holds no per-request state.
type Ingress struct {
	webhooks  WebhookStore
	triggers  TriggerStore
	playbooks PlaybookStore
	starter   Starter
	audit     Auditor
	metrics   MetricsRecorder

	peerLimiter     Limiter
	playbookLimiter Limiter
	globalLimiter   Limiter
	nonces          NonceCache

	burstLimit            int
	globalRequestsPerMin  int
	maxBodyBytes          int64
	freshnessWindow       time.Duration
	nonceTTL              time.Duration
	floodWindow           time.Duration
	playbookFloodLimit    int
	globalFloodLimit      int
	sustainedAbuseStrikes int

	now func() time.Time
}

// Config bounds the ingress pipeline (mirrors pkg/config.WebhookConfig;
// kept separate so this package never imports pkg/config directly).
type Config struct {
	BurstLimit            int
	GlobalRequestsPerMin  int
	MaxBodyBytes          int64
	FreshnessWindow       time.Duration
	NonceCacheTTL         time.Duration
	FloodWindow           time.Duration
	PlaybookFloodLimit    int
	GlobalFloodLimit      int
	SustainedAbuseStrikes int
}

// New wires an Ingress from its collaborators. peerLimiter backs checks 1
// and 7 (reuse the same Limiter instance across both scopes is fine, the
// key namespaces it); nonces backs check 4.
func New(webhooks WebhookStore, triggers TriggerStore, playbooks PlaybookStore, starter Starter, audit Auditor, metrics MetricsRecorder, limiter Limiter, nonces NonceCache, cfg Config) *Ingress {
	return &Ingress{
		webhooks:  webhooks,
		triggers:  triggers,
		playbooks: playbooks,
		starter:   starter,
		audit:     audit,
		metrics:   metrics,

		peerLimiter:     limiter,
		playbookLimiter: limiter,
		globalLimiter:   limiter,
		nonces:          nonces,

		burstLimit:            orDefault(cfg.BurstLimit, 20),
		globalRequestsPerMin:  orDefault(cfg.GlobalRequestsPerMin, 600),
		maxBodyBytes:          orDefaultI64(cfg.MaxBodyBytes, 1<<20),
		freshnessWindow:       orDefaultD(cfg.FreshnessWindow, 5*time.Minute),
		nonceTTL:              orDefaultD(cfg.NonceCacheTTL, 5*time.Minute),
		floodWindow:           orDefaultD(cfg.FloodWindow, time.Minute),
		playbookFloodLimit:    orDefault(cfg.PlaybookFloodLimit, 30),
		globalFloodLimit:      orDefault(cfg.GlobalFloodLimit, 300),
		sustainedAbuseStrikes: orDefault(cfg.SustainedAbuseStrikes, 3),

		now: time.Now,
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDefaultI64(v, def int64) int64 {
	if v <= 0 {
		return def
	}
	return v
}

func orDefaultD(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

// Ingest runs req through the full §4.1 pipeline and, on a match, starts
// an execution. It never panics; every rejection is a typed *Error.
func (ing *Ingress) Ingest(ctx context.Context, req Request) (*Result, *Error) {
	start := ing.now()
	ing.metrics.IncReceived()

	defer func() {
		ing.metrics.ObserveProcessing(ing.now().Sub(start))
	}()

	// 1. Peer IP rate limit.
	if allowed, retryAfter := ing.peerLimiter.Allow(ctx, "peer:"+req.PeerIP, ing.burstLimit, time.Minute); !allowed {
		return nil, ing.reject(CodeRateLimited, "peer IP rate limit exceeded", int(retryAfter.Seconds()))
	}
	if allowed, retryAfter := ing.globalLimiter.Allow(ctx, "global:requests", ing.globalRequestsPerMin, time.Minute); !allowed {
		return nil, ing.reject(CodeRateLimited, "global request rate limit exceeded", int(retryAfter.Seconds()))
	}

	// 2. Payload body cap.
	if int64(len(req.Body)) > ing.maxBodyBytes {
		return nil, ing.reject(CodeBodyTooLarge, fmt.Sprintf("body exceeds %d bytes", ing.maxBodyBytes), 0)
	}

	// 3. Timestamp header freshness.
	if req.Timestamp != "" {
		if err := ing.checkFreshness(req.Timestamp, start); err != nil {
			return nil, err
		}
	}

	// 4. Nonce replay cache.
	nonceKey := fingerprint(req.WebhookID, req.Timestamp, req.Body)
	if ing.nonces.SeenOrRecord(ctx, nonceKey, ing.freshnessWindow) {
		return nil, ing.reject(CodeDuplicateNonce, "duplicate request", 0)
	}

	wh, err := ing.webhooks.Get(ctx, req.WebhookID)
	if err != nil {
		return nil, ing.reject(CodeNotFound, "webhook not found", 0)
	}

	// 5. HMAC signature.
	if cerr := ing.checkSignature(wh, req, start); cerr != nil {
		return nil, cerr
	}

	// 6. Webhook status.
	if wh.Status == models.WebhookDisabled {
		return nil, ing.reject(CodeWebhookDisabled, "webhook disabled", 0)
	}
	if wh.Status == models.WebhookSuspended {
		return nil, ing.reject(CodeWebhookSuspended, "webhook suspended: "+wh.SuspendReason, 0)
	}

	// §3.2: rate-limit window closing over cap drives sustained-abuse
	// auto-suspend, tracked per webhook independent of the peer/global
	// limiters above.
	if cerr := ing.checkWebhookRateLimit(ctx, &wh); cerr != nil {
		return nil, cerr
	}

	// 7. Flood control.
	if allowed, retryAfter := ing.playbookLimiter.Allow(ctx, "playbook:"+wh.PlaybookID, ing.playbookFloodLimit, ing.floodWindow); !allowed {
		return nil, ing.reject(CodePlaybookFlood, "playbook flood limit exceeded", int(retryAfter.Seconds()))
	}
	if allowed, retryAfter := ing.globalLimiter.Allow(ctx, "global:flood", ing.globalFloodLimit, ing.floodWindow); !allowed {
		return nil, ing.reject(CodeGlobalFlood, "global flood limit exceeded", int(retryAfter.Seconds()))
	}

	// 8. Body schema.
	var rawPayload map[string]any
	if err := json.Unmarshal(req.Body, &rawPayload); err != nil {
		return nil, ing.reject(CodeInvalidPayload, "body is not a JSON object", 0)
	}
	// §4.3 alert normalization: add flat aliases (source_ip, rule_id, ...)
	// so downstream trigger conditions and step input templates can use
	// either the alias or the original nested path.
	payload := trigger.Normalize(rawPayload)

	trig, err := ing.triggers.Get(ctx, req.WebhookID)
	if err != nil {
		return nil, ing.reject(CodeNotFound, "trigger not bound", 0)
	}

	outcome := trigger.Evaluate(trig, payload)
	ing.recordAccepted(ctx, &wh, outcome == trigger.Matched, start)

	if outcome != trigger.Matched {
		ing.metrics.IncDropped()
		return &Result{Outcome: OutcomeDropped}, nil
	}

	pb, err := ing.playbooks.GetActive(ctx, wh.PlaybookID)
	if err != nil {
		return nil, ing.reject(CodeNotFound, "active playbook not found", 0)
	}

	executionID, err := ing.starter.Start(ctx, pb, payload, "webhook:"+req.WebhookID)
	if err != nil {
		return nil, newError(CodeInvalidPayload, "failed to start execution: "+err.Error())
	}

	ing.metrics.IncAccepted()
	ing.audit.Record(ctx, executionID, pb.PlaybookID, models.AuditEvent{
		Timestamp: start, Action: models.ActionWebhookAccepted, ResourceType: "webhook",
		ResourceID: req.WebhookID, Outcome: models.OutcomeSuccess,
	})
	return &Result{Outcome: OutcomeAccepted, ExecutionID: executionID}, nil
}

func (ing *Ingress) checkFreshness(timestamp string, now time.Time) *Error {
	ts, err := parseTimestamp(timestamp)
	if err != nil {
		return ing.reject(CodeTimestampSkew, "malformed timestamp", 0)
	}
	skew := now.Sub(ts)
	if skew < 0 {
		skew = -skew
	}
	if skew > ing.freshnessWindow {
		return ing.reject(CodeTimestampSkew, "timestamp outside freshness window", 0)
	}
	return nil
}

func (ing *Ingress) checkSignature(wh models.Webhook, req Request, now time.Time) *Error {
	if req.Signature == "" {
		if wh.RequireHMAC {
			return ing.reject(CodeSignatureMismatch, "signature required", 0)
		}
		return nil
	}
	if req.Timestamp == "" {
		return ing.reject(CodeMissingTimestamp, "signature present without timestamp", 0)
	}
	ts, err := parseTimestamp(req.Timestamp)
	if err != nil || now.Sub(ts) > ing.freshnessWindow {
		return ing.reject(CodeTimestampExpired, "timestamp too old for signature check", 0)
	}
	if !verifySignature(wh.SecretHex, req.Timestamp, req.Body, req.Signature) {
		return ing.reject(CodeSignatureMismatch, "signature mismatch", 0)
	}
	return nil
}

// checkWebhookRateLimit applies the webhook's own max_requests/
// time_window_seconds cap and bumps the sustained-abuse strike counter
// each time a window closes over cap, auto-suspending at the configured
// threshold (§3.2). This is an approximation of "N consecutive closing
// windows": it strikes once per rejected request rather than once per
// window, which over-counts bursts within a single window but never
// under-counts sustained abuse.
func (ing *Ingress) checkWebhookRateLimit(ctx context.Context, wh *models.Webhook) *Error {
	if wh.MaxRequests <= 0 {
		return nil
	}
	window := time.Duration(wh.TimeWindowSeconds) * time.Second
	if window <= 0 {
		window = time.Minute
	}
	allowed, retryAfter := ing.peerLimiter.Allow(ctx, "webhook-rate:"+wh.WebhookID, wh.MaxRequests, window)
	if allowed {
		return nil
	}

	wh.SustainedAbuseCount++
	if wh.SustainedAbuseCount >= ing.sustainedAbuseStrikes && wh.Status == models.WebhookActive {
		wh.Status = models.WebhookSuspended
		wh.SuspendReason = "sustained rate-limit abuse"
	}
	_ = ing.webhooks.Save(ctx, *wh)
	return ing.reject(CodeRateLimited, "webhook rate limit exceeded", int(retryAfter.Seconds()))
}

func (ing *Ingress) recordAccepted(ctx context.Context, wh *models.Webhook, accepted bool, now time.Time) {
	wh.Stats.Received++
	wh.Stats.LastReceivedAt = &now
	if accepted {
		wh.Stats.Accepted++
		wh.Stats.LastAcceptedAt = &now
	} else {
		wh.Stats.Dropped++
	}
	elapsed := ing.now().Sub(now).Seconds() * 1000
	n := float64(wh.Stats.Received)
	wh.Stats.AvgProcessingMS = wh.Stats.AvgProcessingMS + (elapsed-wh.Stats.AvgProcessingMS)/n
	_ = ing.webhooks.Save(ctx, *wh)
}

func (ing *Ingress) reject(code Code, message string, retryAfter int) *Error {
	ing.metrics.IncRejected(code)
	return &Error{Code: code, Message: message, RetryAfterSeconds: retryAfter}
}

func fingerprint(webhookID, timestamp string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(webhookID))
	h.Write([]byte("."))
	h.Write([]byte(timestamp))
	h.Write([]byte("."))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func parseTimestamp(raw string) (time.Time, error) {
	if sec, err := parseUnixSeconds(raw); err == nil {
		return time.Unix(sec, 0), nil
	}
	return time.Parse(time.RFC3339, raw)
}

func parseUnixSeconds(raw string) (int64, error) {
	var sec int64
	_, err := fmt.Sscanf(raw, "%d", &sec)
	if err != nil {
		return 0, err
	}
	return sec, nil
}
