// Package script is the engine-side half of spec.md §1's "opaque script
// host" boundary: user-defined functions (`fn::name(...)`) are marshalled
// to values and handed to a Host this package never implements itself —
// only the call-site plumbing (circuit breaking, logging, the
// exec.Hooks.RunScript/eval.Hooks.Script closures) is this engine's
// concern, the same interface-at-the-edge split catalog.Store keeps
// around kv.Store.
package script

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/forbearing/stratadb/kerr"
	"github.com/forbearing/stratadb/logger"
	"github.com/forbearing/stratadb/value"
)

// Host is the opaque script runtime spec.md §1 scopes out of this
// engine — embedders supply one (a JS isolate, a Lua VM, a gRPC call to a
// sidecar process, ...).
type Host interface {
	Call(ctx context.Context, name string, args []value.Value) (value.Value, error)
}

// HostFunc adapts a plain function to Host.
type HostFunc func(ctx context.Context, name string, args []value.Value) (value.Value, error)

func (f HostFunc) Call(ctx context.Context, name string, args []value.Value) (value.Value, error) {
	return f(ctx, name, args)
}

// Settings configures the circuit breaker guarding Host calls, mirroring
// the teacher's middleware.Init circuit-breaker config shape
// (MaxRequests/MinRequests/FailureRate/Interval/Timeout).
type Settings struct {
	Name        string
	MaxRequests uint32
	MinRequests uint32
	FailureRate float64
	Interval    time.Duration
	Timeout     time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		Name:        "script-host",
		MaxRequests: 1,
		MinRequests: 5,
		FailureRate: 0.6,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
	}
}

// Runner wraps a Host with a circuit breaker: a flaky or hung script host
// shouldn't let every statement that happens to call fn::whatever pile up
// waiting on it, the same reasoning the teacher's own middleware applies
// to its outbound HTTP calls.
type Runner struct {
	host Host
	cb   *gobreaker.CircuitBreaker
	log  logger.Logger
}

func New(host Host, settings Settings, log logger.Logger) (*Runner, error) {
	if settings.MaxRequests == 0 {
		return nil, kerr.TypeMismatch("circuit breaker max_requests > 0", "0")
	}
	if settings.MinRequests == 0 {
		return nil, kerr.TypeMismatch("circuit breaker min_requests > 0", "0")
	}
	if settings.FailureRate <= 0 || settings.FailureRate > 1 {
		return nil, kerr.TypeMismatch("circuit breaker failure_rate in (0,1]", "out of range")
	}
	if log == nil {
		log = logger.Nop()
	}
	r := &Runner{host: host, log: log}
	r.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= settings.FailureRate
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Infow("script host circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return r, nil
}

// Run invokes name through the circuit breaker, satisfying both
// exec.Hooks.RunScript and eval.Hooks.Script's shape (the latter once
// wrapped to drop ctx, since eval's Script hook predates context-aware
// evaluation throughout this codebase).
func (r *Runner) Run(ctx context.Context, name string, args []value.Value) (value.Value, error) {
	out, err := r.cb.Execute(func() (any, error) {
		return r.host.Call(ctx, name, args)
	})
	if err != nil {
		return value.Value{}, err
	}
	return out.(value.Value), nil
}
