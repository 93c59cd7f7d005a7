// Package checker holds what the checker runners share.
package checker

import (
	"fmt"

	"github.com/snow-ghost/patrefine/core"
)

// ExitError is returned when the checker process exits with a non-zero status.
type ExitError struct {
	Code int
	// Output is the tail of the combined stdout and stderr.
	Output string
}

func (e *ExitError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%v: exit code %d", core.ErrCheckerFailed, e.Code)
	}
	return fmt.Sprintf("%v: exit code %d: %s", core.ErrCheckerFailed, e.Code, e.Output)
}

func (e *ExitError) Unwrap() error { return core.ErrCheckerFailed }
