package command

import (
	"errors"
	"fmt"

	"github.com/dokzlo13/lamplighter/internal/hue"
)

// OutcomeKind classifies what happened to a request.
type OutcomeKind int

const (
	OutcomeApplied OutcomeKind = iota
	OutcomeDeviceNotFound
	OutcomeSubmissionFailed
	OutcomeGroupUnsupported
	OutcomeInvalidRequest
)

// String returns a human-readable name for the kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeApplied:
		return "applied"
	case OutcomeDeviceNotFound:
		return "device_not_found"
	case OutcomeSubmissionFailed:
		return "submission_failed"
	case OutcomeGroupUnsupported:
		return "group_unsupported"
	case OutcomeInvalidRequest:
		return "invalid_request"
	default:
		return "unknown"
	}
}

var (
	ErrDeviceNotFound   = errors.New("no light with that name")
	ErrSubmission       = errors.New("bridge did not apply the state change")
	ErrGroupUnsupported = errors.New("group commands are not supported yet")
	ErrInvalidRequest   = errors.New("invalid request")
)

// Outcome describes the result of executing a Request.
type Outcome struct {
	Kind    OutcomeKind
	Action  Action
	Target  string
	LightID int
	State   hue.LightState
	Cause   error
}

// Failure converts a non-applied outcome into an error, or nil when the
// state change was applied. Callers decide whether a failure affects the
// exit status; the CLI currently only reports it.
func (o Outcome) Failure() error {
	var sentinel error
	switch o.Kind {
	case OutcomeApplied:
		return nil
	case OutcomeDeviceNotFound:
		sentinel = ErrDeviceNotFound
	case OutcomeSubmissionFailed:
		sentinel = ErrSubmission
	case OutcomeGroupUnsupported:
		sentinel = ErrGroupUnsupported
	default:
		sentinel = ErrInvalidRequest
	}

	if o.Cause != nil {
		return fmt.Errorf("%s %q: %w: %w", o.Action, o.Target, sentinel, o.Cause)
	}
	return fmt.Errorf("%s %q: %w", o.Action, o.Target, sentinel)
}

func (o Outcome) invalid(err error) Outcome {
	o.Kind = OutcomeInvalidRequest
	o.Cause = err
	return o
}
