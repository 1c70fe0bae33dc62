package matrix

import "fmt"

// ConfigurationError reports an invalid axis declaration or registration.
// It is raised before any timing happens.
type ConfigurationError struct {
	Cell   string // empty when the problem is not tied to one cell
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "matrix configuration: " + e.Reason
	if e.Cell != "" {
		msg = fmt.Sprintf("matrix configuration: cell %s: %s", e.Cell, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// UnboundCellError reports a cell with no kernel binding.
type UnboundCellError struct {
	Cell string
}

func (e *UnboundCellError) Error() string {
	return fmt.Sprintf("cell %s has no kernel binding", e.Cell)
}
