/*package godeform calibrates the material parameters of a simulated
deformable scene against a text-conditioned video guidance model.

The Manager owns the outer bi-level loop: each stage runs a short
differentiable rollout under the simulator's gradient tape, scores the
rendered clip with the guidance model, back-propagates the score into the
per-particle material fields, applies a bounded normalized update, and
resets the simulator to its initial condition. On even stages it also runs
a long deterministic rollout that emits the user-visible frames.
*/
package godeform

import (
	"fmt"
	"image"
	"log"
	"path"

	"github.com/google/uuid"

	"github.com/phil-mansfield/godeform/guide"
	pipeio "github.com/phil-mansfield/godeform/io"
	"github.com/phil-mansfield/godeform/render"
	"github.com/phil-mansfield/godeform/sim"
)

// Params is the calibration loop's tuning. Times are seconds.
type Params struct {
	Batches        int
	StageCount     int
	FramesPerStage int
	StepsPerFrame  int
	SubstepDT      float32

	LossScale float64

	OutputDir string
	ClipDelay int
	Debug     bool
}

// Collaborators are the external services the loop drives. All of them are
// blocking and synchronous; a failed call aborts the run.
type Collaborators struct {
	Driver     *sim.Driver
	Coupler    *render.Coupler
	Orbit      *render.Orbit
	Rasterizer render.Rasterizer
	Guidance   guide.Model
	Prompt     *guide.Prompt
}

// Manager runs the calibration loop.
type Manager struct {
	runID string
	par   Params
	co    Collaborators
	rules [sim.QuantityNum]UpdateRule

	state *sim.ParticleState
	log   bool
}

// NewManager returns a Manager over already-initialized collaborators: the
// driver must be loaded, its material fields set and finalized, and its
// boundary conditions installed.
func NewManager(par Params, co Collaborators, logFlag bool) (*Manager, error) {
	if par.Batches <= 0 || par.StageCount <= 0 || par.FramesPerStage <= 0 {
		return nil, fmt.Errorf(
			"Stage geometry must be positive: Batches=%d StageCount=%d "+
				"FramesPerStage=%d.",
			par.Batches, par.StageCount, par.FramesPerStage,
		)
	}
	if par.StepsPerFrame <= 0 || par.SubstepDT <= 0 {
		return nil, fmt.Errorf(
			"Time stepping must be positive: StepsPerFrame=%d SubstepDT=%g.",
			par.StepsPerFrame, par.SubstepDT,
		)
	}
	if co.Driver == nil || co.Coupler == nil || co.Orbit == nil ||
		co.Rasterizer == nil || co.Guidance == nil {
		return nil, fmt.Errorf("Every collaborator must be non-nil.")
	}

	return &Manager{
		runID: uuid.NewString(),
		par:   par,
		co:    co,
		rules: DefaultUpdateRules(),
		state: sim.NewParticleState(co.Driver.N()),
		log:   logFlag,
	}, nil
}

// SetUpdateRules overrides the per-quantity gradient update tuning.
func (man *Manager) SetUpdateRules(rules [sim.QuantityNum]UpdateRule) {
	man.rules = rules
}

// RunID returns the run's unique identifier.
func (man *Manager) RunID() string { return man.runID }

// Run executes the configured number of calibration stages.
func (man *Manager) Run() error {
	if man.log {
		log.Printf("Run %s: %d stages of %d frames.",
			man.runID, man.par.Batches, man.par.FramesPerStage)
	}

	for stage := 0; stage < man.par.Batches; stage++ {
		loss, err := man.runStage(stage)
		if err != nil {
			return fmt.Errorf("Stage %d: %s", stage, err)
		}

		updateFields(man.co.Driver.Fields(), man.rules)

		if err := man.co.Driver.ResetToCheckpoint(); err != nil {
			return fmt.Errorf("Stage %d reset: %s", stage, err)
		}

		if man.par.OutputDir != "" {
			err = man.appendLoss(stage, loss)
			if err != nil {
				return err
			}
		}

		if stage%2 == 0 {
			if err := man.outputRollout(stage); err != nil {
				return fmt.Errorf("Stage %d output rollout: %s", stage, err)
			}
			if err := man.co.Driver.ResetToCheckpoint(); err != nil {
				return fmt.Errorf("Stage %d reset: %s", stage, err)
			}
		}

		if man.log {
			means := fieldMeans(man.co.Driver.Fields())
			log.Printf("Stage %3d: loss %12g, fields %g %g %g %g",
				stage, loss, means[0], means[1], means[2], means[3])
		}
	}

	man.co.Driver.Finish()
	return nil
}

// runStage runs one differentiable rollout, scores it, and back-propagates
// the loss into the material field gradients. The returned loss is already
// scaled and stage-averaged.
func (man *Manager) runStage(stage int) (loss float64, err error) {
	drv, par := man.co.Driver, &man.par

	scope, err := drv.Record()
	if err != nil {
		return 0, err
	}
	defer scope.Close()

	// The finalize step is the differentiation leaf: per-particle stiffness
	// derived here is what the backward pass ultimately reaches.
	if err := drv.FinalizeMaterial(); err != nil {
		return 0, err
	}
	if err := scope.Suspend(); err != nil {
		return 0, err
	}

	// Warm-up grows with the stage index so later stages probe deeper into
	// the rollout before the scored window opens.
	warmup := par.StepsPerFrame * (stage % par.StageCount)
	for i := 0; i < warmup; i++ {
		if err := drv.Advance(-1, par.SubstepDT); err != nil {
			return 0, err
		}
	}

	clip := make([]image.Image, 0, par.FramesPerStage)
	// Each recorded frame advances further than an output frame does: the
	// extra substeps stretch the scored window across the whole output
	// horizon even though only FramesPerStage frames are rendered.
	frameSteps := par.StepsPerFrame * (1 + par.StageCount)

	for frame := 0; frame < par.FramesPerStage; frame++ {
		for i := 0; i < frameSteps-1; i++ {
			if err := drv.Advance(frame, par.SubstepDT); err != nil {
				return 0, err
			}
		}

		// Only the final substep of each frame is recorded. Gradients reach
		// just the last state per frame, which trades gradient fidelity for
		// tape memory.
		if err := scope.Reopen(); err != nil {
			return 0, err
		}
		if err := drv.Advance(frame, par.SubstepDT); err != nil {
			return 0, err
		}
		if err := drv.Export(man.state); err != nil {
			return 0, err
		}
		if err := scope.Suspend(); err != nil {
			return 0, err
		}

		cam := man.co.Orbit.Camera(frame)
		in, err := man.co.Coupler.Frame(man.state, cam)
		if err != nil {
			return 0, err
		}
		img, err := man.co.Rasterizer.Render(cam, in)
		if err != nil {
			return 0, err
		}
		clip = append(clip, img)
	}

	pose := guide.PoseMeta{
		Elevation:  man.co.Orbit.InitElevation,
		Azimuth:    man.co.Orbit.InitAzimuth,
		Radius:     man.co.Orbit.InitRadius,
		FrameCount: par.FramesPerStage,
	}
	out, err := man.co.Guidance.Score(clip, man.co.Prompt, pose)
	if err != nil {
		return 0, err
	}
	sum, err := guide.SumLosses(out)
	if err != nil {
		return 0, err
	}
	loss = sum * par.LossScale / float64(par.StageCount)

	if err := man.co.Guidance.Backward(loss); err != nil {
		return 0, err
	}
	if _, err := drv.BackwardSeed(); err != nil {
		return 0, err
	}
	return loss, scope.Close()
}

// outputRollout runs the full-horizon deterministic rollout with the
// just-updated fields and writes the user-visible frames.
func (man *Manager) outputRollout(stage int) error {
	drv, par := man.co.Driver, &man.par

	if err := drv.FinalizeMaterial(); err != nil {
		return err
	}

	frames := []image.Image{}
	frameNum := par.StageCount * par.FramesPerStage
	for frame := 0; frame < frameNum; frame++ {
		for i := 0; i < par.StepsPerFrame; i++ {
			if err := drv.Advance(frame, par.SubstepDT); err != nil {
				return err
			}
		}
		if err := drv.Export(man.state); err != nil {
			return err
		}

		cam := man.co.Orbit.Camera(frame)
		in, err := man.co.Coupler.Frame(man.state, cam)
		if err != nil {
			return err
		}
		img, err := man.co.Rasterizer.Render(cam, in)
		if err != nil {
			return err
		}

		if par.OutputDir != "" {
			if err := pipeio.WriteFrame(par.OutputDir, frame, img); err != nil {
				return err
			}
		}
		frames = append(frames, img)
	}

	if par.OutputDir != "" {
		clip := path.Join(par.OutputDir, fmt.Sprintf("video%02d.gif", stage))
		if err := pipeio.AssembleClip(clip, frames, man.clipDelay()); err != nil {
			return err
		}
		if par.Debug {
			snap := path.Join(par.OutputDir,
				fmt.Sprintf("particles%02d.ply", stage))
			if err := pipeio.WriteSnapshot(snap, man.state.Pos); err != nil {
				return err
			}
		}
	}
	return nil
}

func (man *Manager) clipDelay() int {
	if man.par.ClipDelay > 0 {
		return man.par.ClipDelay
	}
	return 4
}

func (man *Manager) appendLoss(stage int, loss float64) error {
	fname := path.Join(man.par.OutputDir, "loss.txt")
	means := fieldMeans(man.co.Driver.Fields())
	return pipeio.AppendLoss(fname, stage, loss, means)
}
