package sim

import (
	"fmt"
)

// Context holds the process-wide simulator resources: device selection and
// the background grid geometry every engine in the run shares. It is
// explicitly constructed and explicitly closed by the top-level run so that
// multiple runs (and tests) stay isolated instead of leaking ambient global
// state.
type Context struct {
	Device    string
	GridCells int
	GridLim   float32

	closed bool
}

// NewContext validates the grid geometry and returns a live context.
func NewContext(device string, gridCells int, gridLim float32) (*Context, error) {
	if gridCells <= 0 {
		return nil, fmt.Errorf("Grid cell count must be positive, got %d.",
			gridCells)
	}
	if gridLim <= 0 {
		return nil, fmt.Errorf("Grid extent must be positive, got %g.",
			gridLim)
	}
	return &Context{Device: device, GridCells: gridCells, GridLim: gridLim}, nil
}

// Close releases the context. Using engines created from a closed context
// is a programming error.
func (c *Context) Close() error {
	if c.closed {
		return fmt.Errorf("Context closed twice.")
	}
	c.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (c *Context) Closed() bool { return c.closed }
