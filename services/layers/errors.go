package layers

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownKind = errors.New("unknown layer kind")
	ErrValidation  = errors.New("validation failed")
)

// UnsupportedLocationError reports a bridge conversion requested for a
// location outside the supported set.
type UnsupportedLocationError struct {
	Location  string
	Supported []string
}

func (e *UnsupportedLocationError) Error() string {
	return fmt.Sprintf("unsupported location %q (supported: %s)", e.Location, strings.Join(e.Supported, ", "))
}

// Is lets callers match the error class with errors.Is(err, ErrValidation).
func (e *UnsupportedLocationError) Is(target error) bool {
	return target == ErrValidation
}
