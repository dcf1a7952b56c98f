package launcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/omp-launcher/internal/apperr"
)

// Injection defaults.
const (
	DefaultMaxRetries = 5
	DefaultRetryDelay = 500 * time.Millisecond
	// DefaultMarker is a module the game loads late in its startup; once it is
	// present the process accepts foreign libraries reliably.
	DefaultMarker = "vorbis"
)

// ProcessAPI opens running processes for injection.
type ProcessAPI interface {
	Open(pid uint32) (Process, error)
}

// Process is an opened target process.
type Process interface {
	// Inject loads the library at path into the process.
	Inject(path string) error
	// Modules lists the file paths of the modules loaded in the process.
	Modules() ([]string, error)
	Close() error
}

// State is a step of the injection state machine.
type State uint8

// Injection states.
const (
	StateAttempting State = iota
	StateWaitingForMarker
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateWaitingForMarker:
		return "waiting_for_marker"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Attempt is the state of one payload injection.
type Attempt struct {
	Payload string
	// Retries counts failed attempts in the current cycle.
	Retries int
	PID     uint32
	// WaitingForMarker is set once the marker wait has been entered.
	WaitingForMarker bool
	State            State
}

// Policy tunes the retry behaviour.
type Policy struct {
	// Marker is matched case-insensitively against loaded module paths.
	Marker string
	// MaxRetries is the number of attempts per cycle.
	MaxRetries int
	// Delay separates attempts and marker polls.
	Delay time.Duration
	// MarkerTimeout bounds the marker wait; zero waits until ctx is done.
	MarkerTimeout time.Duration
}

// DefaultPolicy returns the stock retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		Delay:      DefaultRetryDelay,
		Marker:     DefaultMarker,
	}
}

// Injector drives the injection of one payload into a process: a bounded cycle
// of attempts, then a wait for the marker module, then exactly one more cycle.
type Injector struct {
	API    ProcessAPI
	Policy Policy

	// OnTransition observes every state change. Optional.
	OnTransition func(Attempt)

	sleep func(ctx context.Context, d time.Duration) error
}

// NewInjector creates an injector, filling unset policy fields with defaults.
func NewInjector(api ProcessAPI, policy Policy) *Injector {
	def := DefaultPolicy()
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = def.MaxRetries
	}
	if policy.Delay <= 0 {
		policy.Delay = def.Delay
	}
	if policy.Marker == "" {
		policy.Marker = def.Marker
	}

	return &Injector{API: api, Policy: policy, sleep: sleepCtx}
}

// Inject loads payload into the process pid.
func (inj *Injector) Inject(ctx context.Context, pid uint32, payload string) error {
	proc, err := inj.API.Open(pid)
	if err != nil {
		log.Debug().Err(err).Uint32("pid", pid).Msg("Failed to access process")
		return apperr.FromOS(err, apperr.Process, "Unable to open game process")
	}
	defer func() {
		if err := proc.Close(); err != nil {
			log.Debug().Err(err).Uint32("pid", pid).Msg("Failed to close process handle")
		}
	}()

	a := Attempt{PID: pid, Payload: payload, State: StateAttempting}
	total := 0

	for {
		inj.transition(a)

		lastErr := proc.Inject(payload)
		total++
		if lastErr == nil {
			a.State = StateSucceeded
			inj.transition(a)
			return nil
		}

		log.Debug().
			Err(lastErr).
			Uint32("pid", pid).
			Str("payload", payload).
			Int("retry", a.Retries).
			Bool("marker", a.WaitingForMarker).
			Msg("Injection attempt failed")

		if a.Retries+1 < inj.Policy.MaxRetries {
			a.Retries++
			if err := inj.wait(ctx, inj.Policy.Delay); err != nil {
				return apperr.Wrap(apperr.Injection, "payload injection cancelled", err)
			}
			continue
		}

		if a.WaitingForMarker {
			a.State = StateFailed
			inj.transition(a)
			return apperr.Wrap(apperr.Injection, fmt.Sprintf("payload injection failed after %d attempts", total), lastErr)
		}

		a.State = StateWaitingForMarker
		a.WaitingForMarker = true
		inj.transition(a)

		if err := inj.waitForMarker(ctx, proc); err != nil {
			return err
		}

		a.State = StateAttempting
		a.Retries = 0
	}
}

// waitForMarker polls the module list until a module path contains the marker.
// Enumeration errors count as "not loaded yet".
func (inj *Injector) waitForMarker(ctx context.Context, proc Process) error {
	if inj.Policy.MarkerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inj.Policy.MarkerTimeout)
		defer cancel()
	}

	marker := strings.ToLower(inj.Policy.Marker)
	for {
		modules, err := proc.Modules()
		if err != nil {
			log.Trace().Err(err).Msg("Module enumeration failed")
		}
		for _, m := range modules {
			if strings.Contains(strings.ToLower(m), marker) {
				log.Debug().Str("module", m).Msg("Marker module loaded")
				return nil
			}
		}

		if err := inj.wait(ctx, inj.Policy.Delay); err != nil {
			return apperr.Wrap(apperr.Injection, "timed out waiting for "+inj.Policy.Marker+" module", err)
		}
	}
}

func (inj *Injector) transition(a Attempt) {
	log.Trace().
		Uint32("pid", a.PID).
		Str("payload", a.Payload).
		Str("state", a.State.String()).
		Int("retry", a.Retries).
		Msg("Injection state")

	if inj.OnTransition != nil {
		inj.OnTransition(a)
	}
}

func (inj *Injector) wait(ctx context.Context, d time.Duration) error {
	if inj.sleep != nil {
		return inj.sleep(ctx, d)
	}

	return sleepCtx(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
