// Package command turns a parsed CLI request into a light state change
// and submits it to the bridge.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lamplighter/internal/brightness"
	"github.com/dokzlo13/lamplighter/internal/directory"
	"github.com/dokzlo13/lamplighter/internal/hue"
)

// Action is the requested kind of state change.
type Action string

const (
	ActionOn  Action = "on"
	ActionOff Action = "off"
	ActionDim Action = "dim"
)

// Request is one command as parsed from the command line.
// Exactly one of Lamp or Group is set; Brightness is only used by dim.
type Request struct {
	Action     Action
	Lamp       string
	Group      string
	Brightness string
}

// Target returns the lamp or group name the request addresses.
func (r Request) Target() string {
	if r.Group != "" {
		return r.Group
	}
	return r.Lamp
}

// Bridge is the part of the bridge client the executor needs.
type Bridge interface {
	directory.Lister
	SetLightState(ctx context.Context, id int, state hue.LightState) error
}

// Executor resolves and submits requests against one bridge.
type Executor struct {
	bridge   Bridge
	resolver *directory.Resolver
	out      io.Writer
}

// NewExecutor creates an executor. Messages for the user are written to out.
func NewExecutor(bridge Bridge, out io.Writer) *Executor {
	if out == nil {
		out = io.Discard
	}
	return &Executor{
		bridge:   bridge,
		resolver: directory.NewResolver(bridge),
		out:      out,
	}
}

// Execute runs a request. It never returns an error: every result,
// including failures, is described by the Outcome.
func (e *Executor) Execute(ctx context.Context, req Request) Outcome {
	outcome := Outcome{Action: req.Action, Target: req.Target()}

	switch req.Action {
	case ActionOn:
		if req.Group != "" {
			return e.group(outcome, "on")
		}
		return e.submit(ctx, outcome, hue.NewLightState().WithOn())

	case ActionOff:
		if req.Group != "" {
			return e.group(outcome, "off")
		}
		return e.submit(ctx, outcome, hue.NewLightState().WithOff())

	case ActionDim:
		if req.Lamp == "" {
			return outcome.invalid(errors.New("dim requires a lamp name"))
		}
		bri, err := brightness.Parse(req.Brightness)
		if err != nil {
			return outcome.invalid(err)
		}
		return e.submit(ctx, outcome, hue.NewLightState().WithOn().WithBrightness(bri))
	}

	return outcome.invalid(fmt.Errorf("unknown action %q", req.Action))
}

// group handles group targets, which are not implemented yet: the request
// is acknowledged and no state changes.
func (e *Executor) group(outcome Outcome, verb string) Outcome {
	fmt.Fprintf(e.out, "Turn %s all in %s\n", verb, outcome.Target)
	outcome.Kind = OutcomeGroupUnsupported
	return outcome
}

func (e *Executor) submit(ctx context.Context, outcome Outcome, state hue.LightState) Outcome {
	outcome.State = state

	if outcome.Target == "" {
		return outcome.invalid(errors.New("no lamp name given"))
	}

	res := e.resolver.Resolve(ctx, outcome.Target)
	if !res.Found {
		outcome.Kind = OutcomeDeviceNotFound
		outcome.Cause = res.FetchErr
		return outcome
	}
	outcome.LightID = res.ID

	if err := e.bridge.SetLightState(ctx, res.ID, state); err != nil {
		log.Error().Err(err).Int("light_id", res.ID).Stringer("state", state).Msg("Failed to set light state")
		outcome.Kind = OutcomeSubmissionFailed
		outcome.Cause = err
		return outcome
	}

	log.Info().Int("light_id", res.ID).Str("lamp", outcome.Target).Stringer("state", state).Msg("Light updated")
	outcome.Kind = OutcomeApplied
	return outcome
}
