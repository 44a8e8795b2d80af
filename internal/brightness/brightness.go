// Package brightness parses user supplied brightness expressions.
//
// Two forms are accepted: a raw byte ("0".."255") or a percentage
// ("0%".."100%"). Percentages are scaled to the 0-255 range with a
// truncating conversion, so "50%" becomes 127 rather than 128.
package brightness

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrFormat is returned for any input that is not a valid brightness expression.
var ErrFormat = errors.New("invalid brightness")

// FormatError describes why an expression was rejected.
type FormatError struct {
	Input   string
	Percent bool
}

func (e *FormatError) Error() string {
	if e.Percent {
		return fmt.Sprintf("brightness percentage must be 0-100%%, got %q", e.Input)
	}
	return fmt.Sprintf("brightness must be 0-255, got %q", e.Input)
}

// Unwrap lets callers match any FormatError with errors.Is(err, ErrFormat).
func (e *FormatError) Unwrap() error {
	return ErrFormat
}

// Parse converts an expression into a brightness byte.
func Parse(input string) (uint8, error) {
	if digits, ok := strings.CutSuffix(input, "%"); ok {
		pct, err := parseUint(digits, 100)
		if err != nil {
			return 0, &FormatError{Input: input, Percent: true}
		}
		// Integer arithmetic truncates exactly; float64(0.6)*255 lands just
		// below 153.
		return uint8(255 * pct / 100), nil
	}

	v, err := parseUint(input, 255)
	if err != nil {
		return 0, &FormatError{Input: input}
	}
	return uint8(v), nil
}

// Validate reports whether input would be accepted by Parse.
// It shares Parse's code path so the two can never disagree.
func Validate(input string) error {
	_, err := Parse(input)
	return err
}

// parseUint accepts plain decimal digits only. Signs and whitespace are
// rejected.
func parseUint(s string, max uint64) (uint64, error) {
	if s == "" || strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return 0, ErrFormat
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v > max {
		return 0, ErrFormat
	}
	return v, nil
}
