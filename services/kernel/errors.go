package kernel

import "errors"

// ErrInvalidTransition is returned when a phase method is called out of order
// or while another phase is running.
var ErrInvalidTransition = errors.New("invalid kernel state transition")
