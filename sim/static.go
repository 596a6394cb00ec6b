package sim

import (
	"fmt"

	"github.com/phil-mansfield/godeform/geom"
)

// StaticEngine is the in-repo reference backend: it carries full particle
// state but its physics is a no-op, so positions never move and every
// gradient is zero. It exists so the pipeline can be exercised end to end
// without an accelerator, and so tests have an Engine with honest lifecycle
// semantics.
type StaticEngine struct {
	ctx *Context

	pos []geom.Vec
	vol []float32
	cov []geom.Sym

	fields *Fields
	tape   staticTape
	loaded bool
}

// NewStaticEngine returns a StaticEngine bound to the given context.
func NewStaticEngine(ctx *Context) *StaticEngine {
	return &StaticEngine{ctx: ctx}
}

// Load implements Engine.
func (e *StaticEngine) Load(
	pos []geom.Vec, vol []float32, cov []geom.Sym,
	gridCells int, gridLim float32,
) error {
	if e.ctx.Closed() {
		return fmt.Errorf("Engine used after its context was closed.")
	}
	if len(pos) != len(vol) || len(pos) != len(cov) {
		return fmt.Errorf(
			"Mismatched particle arrays: %d positions, %d volumes, %d covariances.",
			len(pos), len(vol), len(cov),
		)
	}
	e.pos = append([]geom.Vec(nil), pos...)
	e.vol = append([]float32(nil), vol...)
	e.cov = append([]geom.Sym(nil), cov...)
	e.loaded = true
	return nil
}

// SetMaterial implements Engine.
func (e *StaticEngine) SetMaterial(f *Fields) error {
	e.fields = f
	return nil
}

// Finalize implements Engine. There is no stiffness to derive.
func (e *StaticEngine) Finalize() error {
	if e.fields == nil {
		return fmt.Errorf("Finalize before SetMaterial.")
	}
	return nil
}

// SetBoundaryConditions implements Engine. Static particles ignore them.
func (e *StaticEngine) SetBoundaryConditions(bcs []BoundaryCondition) error {
	return nil
}

// Advance implements Engine as a no-op step.
func (e *StaticEngine) Advance(frame int, dt float32) error {
	if !e.loaded {
		return fmt.Errorf("Advance before Load.")
	}
	return nil
}

// State implements Engine.
func (e *StaticEngine) State(dst *ParticleState) error {
	copy(dst.Pos, e.pos)
	copy(dst.Cov, e.cov)
	for i := range dst.Rot {
		dst.Rot[i] = geom.Identity()
	}
	return nil
}

// StateGrads implements Engine. A no-op rollout has zero gradients.
func (e *StaticEngine) StateGrads(dst *ParticleState) error {
	for i := range dst.Pos {
		dst.Pos[i] = geom.Vec{}
	}
	for i := range dst.Cov {
		dst.Cov[i] = geom.Sym{}
	}
	for i := range dst.Rot {
		dst.Rot[i] = geom.Mat33{}
	}
	return nil
}

// Reset implements Engine.
func (e *StaticEngine) Reset(pos []geom.Vec, vol []float32, cov []geom.Sym) error {
	copy(e.pos, pos)
	copy(e.vol, vol)
	copy(e.cov, cov)
	return nil
}

// Tape implements Engine.
func (e *StaticEngine) Tape() Tape { return &e.tape }

// staticTape records nothing but keeps honest begin/end bookkeeping so the
// driver's scope discipline is still exercised.
type staticTape struct {
	recording bool
}

func (t *staticTape) Reset() error {
	t.recording = false
	return nil
}

func (t *staticTape) Begin() error {
	if t.recording {
		return fmt.Errorf("Tape.Begin while already recording.")
	}
	t.recording = true
	return nil
}

func (t *staticTape) End() error {
	if !t.recording {
		return fmt.Errorf("Tape.End while not recording.")
	}
	t.recording = false
	return nil
}

func (t *staticTape) Backward(seed float64) error { return nil }
