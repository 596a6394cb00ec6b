/*package sim owns the continuum simulator's lifecycle. The simulator itself
is an external accelerator-backed service consumed through the Engine
interface; this package supplies the state machine around it: loading,
material injection, substep advancement, checkpoint/reset, and the
single-scope gradient tape discipline.
*/
package sim

import (
	"fmt"

	"github.com/phil-mansfield/godeform/geom"
)

// Quantity names one of the four calibrated material parameter fields.
type Quantity int

const (
	ElasticModulus Quantity = iota
	ShearModulus
	BulkModulus
	Viscosity
	QuantityNum
)

// String returns the human-readable name of a Quantity.
func (q Quantity) String() string {
	switch q {
	case ElasticModulus:
		return "ElasticModulus"
	case ShearModulus:
		return "ShearModulus"
	case BulkModulus:
		return "BulkModulus"
	case Viscosity:
		return "Viscosity"
	}
	return fmt.Sprintf("Quantity(%d)", int(q))
}

// Fields holds the per-particle material parameter arrays and, after a
// backward pass, their gradients. Fields are the only simulation state that
// survives across calibration stages: the calibration loop mutates the
// value arrays in place and everything else is reset.
type Fields struct {
	vals  [QuantityNum][]float32
	grads [QuantityNum][]float32
}

// NewFields returns fields of n particles with every quantity initialized
// to the given constant.
func NewFields(n int, e, muN, lamN, visc float32) *Fields {
	f := &Fields{}
	init := [QuantityNum]float32{e, muN, lamN, visc}
	for q := Quantity(0); q < QuantityNum; q++ {
		f.vals[q] = make([]float32, n)
		f.grads[q] = make([]float32, n)
		for i := range f.vals[q] {
			f.vals[q][i] = init[q]
		}
	}
	return f
}

// Len returns the particle count the fields are sized to.
func (f *Fields) Len() int { return len(f.vals[0]) }

// Values returns the live value array for q. Mutating it mutates the field.
func (f *Fields) Values(q Quantity) []float32 { return f.vals[q] }

// Grad returns the gradient array for q, valid after a backward pass.
func (f *Fields) Grad(q Quantity) []float32 { return f.grads[q] }

// BoundaryCondition describes one boundary-condition descriptor keyed to a
// simulation time window. The simulator interprets Kind; the driver only
// enforces that these are installed after material finalization, since some
// kinds depend on the derived mass distribution.
type BoundaryCondition struct {
	Kind       string
	Start, End float32

	Point, Normal geom.Vec
	Velocity      geom.Vec
	Friction      float32
}

// ParticleState is an exported snapshot of simulated particle state.
type ParticleState struct {
	Pos []geom.Vec
	Cov []geom.Sym
	Rot []geom.Mat33
}

// NewParticleState returns a snapshot sized for n particles.
func NewParticleState(n int) *ParticleState {
	return &ParticleState{
		Pos: make([]geom.Vec, n),
		Cov: make([]geom.Sym, n),
		Rot: make([]geom.Mat33, n),
	}
}

// Engine is the opaque continuum simulator. Every call blocks until the
// device work completes. Advance is identical inside and outside a recorded
// tape region; only differentiability differs.
type Engine interface {
	// Load allocates simulation state for the given initial particles.
	Load(pos []geom.Vec, vol []float32, cov []geom.Sym,
		gridCells int, gridLim float32) error

	// SetMaterial injects the current material parameter fields.
	SetMaterial(f *Fields) error

	// Finalize derives per-particle stiffness terms from the injected
	// fields. Differentiable when executed inside a tape scope.
	Finalize() error

	// SetBoundaryConditions installs time-keyed boundary descriptors.
	SetBoundaryConditions(bcs []BoundaryCondition) error

	// Advance performs one substep. frame is the output frame the substep
	// belongs to, or a negative value for warm-up substeps.
	Advance(frame int, dt float32) error

	// State writes the current particle state into dst.
	State(dst *ParticleState) error

	// StateGrads writes the gradients of the loss with respect to the
	// exported particle state into dst. Valid after a guidance backward.
	StateGrads(dst *ParticleState) error

	// Reset restores particle state without touching material fields.
	Reset(pos []geom.Vec, vol []float32, cov []geom.Sym) error

	// Tape returns the engine's gradient tape. There is exactly one.
	Tape() Tape
}

// Tape is the simulator's native differentiation mechanism. It is not
// re-entrant: the Driver guards it so at most one scope is open at a time.
type Tape interface {
	Reset() error
	Begin() error
	End() error

	// Backward runs the recorded graph backward from the given scalar seed,
	// leaving gradients on the material fields.
	Backward(seed float64) error
}
