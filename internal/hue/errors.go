package hue

import (
	"errors"
	"fmt"
)

// Bridge error types from the v1 API.
const (
	ErrorTypeUnauthorized     = 1
	ErrorTypeLinkButtonNotSet = 101
)

// ErrLinkButtonNotPressed is matched by an APIError of type 101.
var ErrLinkButtonNotPressed = errors.New("link button not pressed")

// ErrUnauthorized is matched by an APIError of type 1.
var ErrUnauthorized = errors.New("unauthorized user")

// APIError is an error entry returned by the bridge.
type APIError struct {
	Type        int    `json:"type"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hue bridge error %d at %s: %s", e.Type, e.Address, e.Description)
}

// Is maps well-known bridge error types onto sentinel errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrLinkButtonNotPressed:
		return e.Type == ErrorTypeLinkButtonNotSet
	case ErrUnauthorized:
		return e.Type == ErrorTypeUnauthorized
	}
	return false
}

// firstError returns the first error entry of a write response, if any.
func firstError(results []apiResult) error {
	for _, r := range results {
		if r.Error != nil {
			return r.Error
		}
	}
	return nil
}
