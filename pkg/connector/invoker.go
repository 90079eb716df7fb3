package connector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// StatsSink receives per-invocation outcomes for metric emission. The
// engine's prometheus wiring implements this; tests can stub it.
type StatsSink interface {
	ObserveConnectorInvocation(connectorID string, success bool, latency time.Duration)
}

// Invoker layers lookup, the active check, input schema validation, a
// timeout race, and a per-connector circuit breaker on top of the
// registry's raw connector implementations.
type Invoker struct {
	registry *Registry
	stats    StatsSink

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewInvoker wires a Registry and an optional StatsSink (nil disables
// metric emission, e.g. in unit tests).
func NewInvoker(registry *Registry, stats StatsSink) *Invoker {
	return &Invoker{
		registry: registry,
		stats:    stats,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Invoke runs the full contract of §4.5 for one step's connector call.
func (inv *Invoker) Invoke(ctx context.Context, connectorRef, actionType string, inputs map[string]any, timeout time.Duration) (map[string]any, *Error) {
	rec, impl, found := inv.registry.Lookup(connectorRef)
	if !found {
		return nil, NewError(CodeNotFound, fmt.Sprintf("connector %q not found", connectorRef))
	}
	if !rec.Active {
		return nil, NewError(CodeNotFound, fmt.Sprintf("connector %q is not active", rec.ConnectorID))
	}

	schema, ok := rec.Actions[actionType]
	if !ok {
		return nil, NewError(CodeInvalidAction, fmt.Sprintf("connector %q has no action %q", rec.ConnectorID, actionType))
	}
	if cerr := ValidateInput(schema, inputs); cerr != nil {
		return nil, cerr
	}

	start := time.Now()
	output, cerr := inv.callWithBreaker(ctx, rec.ConnectorID, impl, actionType, inputs, timeout)
	latency := time.Since(start)

	if inv.stats != nil {
		inv.stats.ObserveConnectorInvocation(rec.ConnectorID, cerr == nil, latency)
	}
	return output, cerr
}

// callWithBreaker races impl.Execute against timeout inside the
// connector's circuit breaker. A timeout cancels the context and
// returns CONNECTOR_TIMEOUT; an open breaker returns SERVICE_UNAVAILABLE
// without ever reaching the backend.
func (inv *Invoker) callWithBreaker(ctx context.Context, connectorID string, impl Implementation, actionType string, inputs map[string]any, timeout time.Duration) (map[string]any, *Error) {
	cb := inv.breakerFor(connectorID)

	result, err := cb.Execute(func() (any, error) {
		return inv.callWithTimeout(ctx, impl, actionType, inputs, timeout)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			slog.Warn("connector circuit breaker open", "connector_id", connectorID)
			return nil, NewError(CodeServiceUnavailable, fmt.Sprintf("connector %q circuit breaker is open", connectorID))
		}
		// err is always a *Error produced by callWithTimeout below, wrapped
		// by gobreaker's generic error return.
		if cerr, ok := err.(*Error); ok {
			return nil, cerr
		}
		return nil, NewError(CodeInternalError, err.Error())
	}

	output, _ := result.(map[string]any)
	return output, nil
}

func (inv *Invoker) callWithTimeout(ctx context.Context, impl Implementation, actionType string, inputs map[string]any, timeout time.Duration) (map[string]any, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		output map[string]any
		cerr   *Error
	}
	ch := make(chan result, 1)
	go func() {
		output, cerr := impl.Execute(callCtx, actionType, inputs)
		ch <- result{output, cerr}
	}()

	select {
	case <-callCtx.Done():
		return nil, NewError(CodeTimeout, fmt.Sprintf("connector call exceeded %s", timeout))
	case r := <-ch:
		if r.cerr != nil {
			return nil, r.cerr
		}
		return r.output, nil
	}
}

func (inv *Invoker) breakerFor(connectorID string) *gobreaker.CircuitBreaker {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if cb, ok := inv.breakers[connectorID]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        connectorID,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Info("connector circuit breaker state change", "connector_id", name, "from", from, "to", to)
		},
	})
	inv.breakers[connectorID] = cb
	return cb
}
