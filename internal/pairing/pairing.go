// Package pairing obtains a bridge credential by discovering a bridge and
// registering with it, waiting for the user to press the link button.
package pairing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lamplighter/internal/hue"
	"github.com/dokzlo13/lamplighter/internal/session"
)

// DefaultRetryInterval is how long to wait between registration attempts
// while the link button has not been pressed.
const DefaultRetryInterval = 5 * time.Second

var (
	// ErrNoBridge means discovery found no bridge.
	ErrNoBridge = errors.New("no bridge found")
	// ErrRegistration means the bridge refused registration for a reason
	// other than the link button.
	ErrRegistration = errors.New("registration failed")
)

// State is a step of the pairing state machine.
type State int

const (
	StateDiscovering State = iota
	StateAwaitingLinkPress
	StateRegistered
	StateFailed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateDiscovering:
		return "discovering"
	case StateAwaitingLinkPress:
		return "awaiting_link_press"
	case StateRegistered:
		return "registered"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Discoverer finds candidate bridges.
type Discoverer interface {
	Discover(ctx context.Context) ([]hue.BridgeInfo, error)
}

// Registrar requests a new credential from the bridge at address.
type Registrar interface {
	Register(ctx context.Context, address, deviceType string) (string, error)
}

// Waiter blocks between registration attempts.
type Waiter interface {
	Wait(ctx context.Context, d time.Duration) error
}

// WaitFunc adapts a function to Waiter.
type WaitFunc func(ctx context.Context, d time.Duration) error

func (f WaitFunc) Wait(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// Sleep waits on the wall clock and returns early when ctx is cancelled.
var Sleep = WaitFunc(func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
})

// Config holds the fixed parameters of a pairing run.
type Config struct {
	DeviceType    string
	RetryInterval time.Duration
}

// Orchestrator drives Discovering -> AwaitingLinkPress -> Registered.
type Orchestrator struct {
	discoverer Discoverer
	registrar  Registrar
	waiter     Waiter
	out        io.Writer
	cfg        Config

	// OnTransition, if set, observes every state change.
	OnTransition func(from, to State)
}

// New creates an orchestrator. Prompts for the user are written to out.
func New(discoverer Discoverer, registrar Registrar, waiter Waiter, out io.Writer, cfg Config) *Orchestrator {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if out == nil {
		out = io.Discard
	}
	return &Orchestrator{
		discoverer: discoverer,
		registrar:  registrar,
		waiter:     waiter,
		out:        out,
		cfg:        cfg,
	}
}

// Pair runs the state machine to completion. There is no attempt limit:
// registration is retried until the button is pressed, another error
// occurs, or ctx is cancelled.
func (o *Orchestrator) Pair(ctx context.Context) (session.Session, error) {
	state := StateDiscovering
	var address string
	var result session.Session
	var failure error

	transition := func(to State) {
		log.Debug().Stringer("from", state).Stringer("to", to).Msg("Pairing transition")
		if o.OnTransition != nil {
			o.OnTransition(state, to)
		}
		state = to
	}

	for {
		switch state {
		case StateDiscovering:
			bridge, err := o.discover(ctx)
			if err != nil {
				failure = err
				transition(StateFailed)
				continue
			}
			address = bridge.Address
			log.Info().Str("bridge", address).Str("source", bridge.Source).Msg("Bridge discovered")
			transition(StateAwaitingLinkPress)

		case StateAwaitingLinkPress:
			credential, err := o.registrar.Register(ctx, address, o.cfg.DeviceType)
			switch {
			case err == nil:
				result = session.Session{Credential: credential, BridgeAddress: address}
				transition(StateRegistered)
			case errors.Is(err, hue.ErrLinkButtonNotPressed):
				fmt.Fprintf(o.out, "Please, press the link on the bridge. Retrying in %s\n", formatInterval(o.cfg.RetryInterval))
				if werr := o.waiter.Wait(ctx, o.cfg.RetryInterval); werr != nil {
					failure = werr
					transition(StateFailed)
				}
			default:
				if ctxErr := ctx.Err(); ctxErr != nil {
					failure = ctxErr
				} else {
					failure = fmt.Errorf("%w: %w", ErrRegistration, err)
				}
				transition(StateFailed)
			}

		case StateRegistered:
			return result, nil

		case StateFailed:
			return session.Session{}, failure
		}
	}
}

// discover takes the first bridge found.
func (o *Orchestrator) discover(ctx context.Context) (hue.BridgeInfo, error) {
	bridges, err := o.discoverer.Discover(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return hue.BridgeInfo{}, ctxErr
		}
		return hue.BridgeInfo{}, fmt.Errorf("%w: %w", ErrNoBridge, err)
	}
	if len(bridges) == 0 {
		return hue.BridgeInfo{}, ErrNoBridge
	}
	return bridges[0], nil
}

func formatInterval(d time.Duration) string {
	if d%time.Second == 0 {
		secs := int(d / time.Second)
		if secs == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", secs)
	}
	return d.String()
}
