package sim

import (
	"fmt"

	"github.com/phil-mansfield/godeform/geom"
)

// State is the Driver's lifecycle state.
type State int

const (
	Uninitialized State = iota
	Loaded
	Running
	Finalized
)

// String returns the name of a State.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Loaded:
		return "Loaded"
	case Running:
		return "Running"
	case Finalized:
		return "Finalized"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Driver wraps an Engine with the lifecycle the calibration loop needs: a
// one-time load that doubles as the checkpoint, material injection that must
// precede stepping, and resets that restore particle state while preserving
// updated material fields.
//
// Calling methods out of order is a programming error, not a user error, so
// violations panic instead of returning errors.
type Driver struct {
	engine Engine
	state  State

	fields    *Fields
	finalized bool
	advanced  bool
	scopeOpen bool

	// Load-time snapshot used by ResetToCheckpoint.
	ckPos []geom.Vec
	ckVol []float32
	ckCov []geom.Sym
}

// NewDriver returns an uninitialized Driver over the given engine.
func NewDriver(engine Engine) *Driver {
	return &Driver{engine: engine}
}

// State returns the driver's current lifecycle state.
func (d *Driver) State() State { return d.state }

// N returns the loaded particle count.
func (d *Driver) N() int { return len(d.ckPos) }

// Load allocates simulation state for the initial particle set and captures
// it as the reset checkpoint. It may only be called once.
func (d *Driver) Load(
	pos []geom.Vec, vol []float32, cov []geom.Sym,
	gridCells int, gridLim float32,
) error {
	if d.state != Uninitialized {
		panic("Driver.Load called twice.")
	}

	d.ckPos = append([]geom.Vec(nil), pos...)
	d.ckVol = append([]float32(nil), vol...)
	d.ckCov = append([]geom.Sym(nil), cov...)

	if err := d.engine.Load(pos, vol, cov, gridCells, gridLim); err != nil {
		return err
	}
	d.state = Loaded
	return nil
}

// SetMaterialFields injects the material parameter fields. It must be
// called before any stepping; the fields object stays live and is re-read
// by Finalize at the start of every stage.
func (d *Driver) SetMaterialFields(f *Fields) error {
	if d.state == Uninitialized {
		panic("Driver.SetMaterialFields before Load.")
	}
	if f.Len() != d.N() {
		return fmt.Errorf(
			"Material fields sized for %d particles, but %d are loaded.",
			f.Len(), d.N(),
		)
	}
	if err := d.engine.SetMaterial(f); err != nil {
		return err
	}
	d.fields = f
	return nil
}

// Fields returns the injected material fields.
func (d *Driver) Fields() *Fields { return d.fields }

// FinalizeMaterial derives per-particle stiffness from the current fields.
// Run it inside a tape scope when the stage's rollout must be
// differentiable with respect to the fields.
func (d *Driver) FinalizeMaterial() error {
	if d.fields == nil {
		panic("Driver.FinalizeMaterial before SetMaterialFields.")
	}
	if err := d.engine.Finalize(); err != nil {
		return err
	}
	d.finalized = true
	return nil
}

// SetBoundaryConditions installs boundary descriptors. Boundary conditions
// may depend on the mass distribution derived during finalization, so this
// must follow FinalizeMaterial, never precede it.
func (d *Driver) SetBoundaryConditions(bcs []BoundaryCondition) error {
	if !d.finalized {
		panic("Driver.SetBoundaryConditions before FinalizeMaterial.")
	}
	return d.engine.SetBoundaryConditions(bcs)
}

// Advance performs one substep. frame is the output frame this substep
// belongs to, or negative during warm-up.
func (d *Driver) Advance(frame int, dt float32) error {
	if d.state == Uninitialized {
		panic("Driver.Advance before Load.")
	}
	if d.fields == nil || !d.finalized {
		panic("Driver.Advance before material finalization.")
	}
	if err := d.engine.Advance(frame, dt); err != nil {
		return err
	}
	d.state = Running
	d.advanced = true
	return nil
}

// Export writes the current particle state into dst.
func (d *Driver) Export(dst *ParticleState) error {
	if d.state == Uninitialized {
		panic("Driver.Export before Load.")
	}
	return d.engine.State(dst)
}

// ResetToCheckpoint restores positions, volumes, and covariances to the
// load-time snapshot without re-deriving material fields. Two consecutive
// calls with no intervening Advance leave exported state identical.
func (d *Driver) ResetToCheckpoint() error {
	if d.state == Uninitialized {
		panic("Driver.ResetToCheckpoint before Load.")
	}
	if err := d.engine.Reset(d.ckPos, d.ckVol, d.ckCov); err != nil {
		return err
	}
	d.state = Loaded
	return nil
}

// Finish marks the driver terminal. The calibrated fields stay readable;
// they are the run's product.
func (d *Driver) Finish() {
	d.state = Finalized
}

// Scope is an open tape recording region. Exactly one may exist at a time;
// Close is idempotent and must run on every exit path.
type Scope struct {
	d         *Driver
	suspended bool
	closed    bool
}

// Record resets the engine's tape and opens a recording scope. Operations
// executed before Close are differentiable with respect to the fields.
func (d *Driver) Record() (*Scope, error) {
	if d.scopeOpen {
		panic("Nested tape scopes: the simulator's tape is not re-entrant.")
	}
	tape := d.engine.Tape()
	if err := tape.Reset(); err != nil {
		return nil, err
	}
	if err := tape.Begin(); err != nil {
		return nil, err
	}
	d.scopeOpen = true
	return &Scope{d: d}, nil
}

// Reopen resumes recording on the scope's tape after a Suspend. Used when a
// stage records only the last substep of each frame.
func (s *Scope) Reopen() error {
	if s.closed {
		panic("Scope.Reopen after Close.")
	}
	if !s.suspended {
		return nil
	}
	s.suspended = false
	return s.d.engine.Tape().Begin()
}

// Suspend pauses recording without releasing the scope. Substeps executed
// while suspended are cheaper but not differentiable.
func (s *Scope) Suspend() error {
	if s.closed {
		panic("Scope.Suspend after Close.")
	}
	if s.suspended {
		return nil
	}
	s.suspended = true
	return s.d.engine.Tape().End()
}

// Close ends recording and releases the scope.
func (s *Scope) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.d.scopeOpen = false
	if s.suspended {
		return nil
	}
	return s.d.engine.Tape().End()
}

// BackwardSeed folds the exported state against its own gradients into a
// single scalar seed and runs the tape backward from it, leaving gradients
// on the material fields. The fold (sum of element-wise state times
// gradient) reproduces d(loss)/d(fields) through the chain rule without the
// simulator ever seeing the guidance model's graph.
func (d *Driver) BackwardSeed() (float64, error) {
	if !d.advanced {
		panic("Driver.BackwardSeed before any Advance.")
	}

	n := d.N()
	state, grads := NewParticleState(n), NewParticleState(n)
	if err := d.engine.State(state); err != nil {
		return 0, err
	}
	if err := d.engine.StateGrads(grads); err != nil {
		return 0, err
	}

	seed := 0.0
	for i := 0; i < n; i++ {
		for k := 0; k < 3; k++ {
			seed += float64(state.Pos[i][k]) * float64(grads.Pos[i][k])
		}
		for k := 0; k < 6; k++ {
			seed += float64(state.Cov[i][k]) * float64(grads.Cov[i][k])
		}
		for k := 0; k < 9; k++ {
			seed += float64(state.Rot[i][k]) * float64(grads.Rot[i][k])
		}
	}

	if err := d.engine.Tape().Backward(seed); err != nil {
		return 0, err
	}
	return seed, nil
}
