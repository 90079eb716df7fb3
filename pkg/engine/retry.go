package engine

import (
	"math"
	"time"

	"github.com/soarcore/soarcore/pkg/models"
)

// failureAction is what the main loop does next after a step fails
// (§4.4.5).
type failureAction int

const (
	actionRetry failureAction = iota
	actionAdvance
	actionComplete
	actionFail
)

// decideFailure applies a step's retry_policy and on_failure clause to a
// failed attempt. retryCount is the number of retries already spent on
// this step instance.
func decideFailure(step models.Step, retryable bool, retryCount int) (failureAction, time.Duration) {
	rp := step.RetryPolicy
	if rp != nil && rp.Enabled && retryable && retryCount < rp.MaxAttempts {
		delay := rp.DelaySeconds * math.Pow(rp.BackoffMultiplier, float64(retryCount))
		if rp.MaxDelaySeconds > 0 && delay > rp.MaxDelaySeconds {
			delay = rp.MaxDelaySeconds
		}
		return actionRetry, time.Duration(delay * float64(time.Second))
	}

	switch step.OnFailure {
	case "continue":
		return actionAdvance, 0
	case "skip":
		return actionComplete, 0
	default: // "stop" and unset both default to failing the execution
		return actionFail, 0
	}
}
