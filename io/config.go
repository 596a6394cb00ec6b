/*package io reads run configuration files and writes the pipeline's output
artifacts: per-frame images, assembled clips, debug particle snapshots, and
the per-stage loss table.
*/
package io

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/gcfg.v1"

	"github.com/phil-mansfield/godeform/geom"
	"github.com/phil-mansfield/godeform/particle"
	"github.com/phil-mansfield/godeform/sim"
)

const ExampleRunFile = `[Input]

#######################
# Required Parameters #
#######################

# Reconstructed point scene, in the binary splat PLY layout.
Scene = path/to/scene.ply

#######################
# Optional Parameters #
#######################

# Movable-region point cloud (ascii PLY). Particles far from every point in
# it are frozen.
# Moving = path/to/moving.ply

# Guidance backend configuration (YAML) and the prompt text driving it.
# GuidanceConfig = path/to/guidance.yaml
# Prompt = a red cube wobbling like jelly

[Material]

#######################
# Required Parameters #
#######################

# Constitutive model used by the simulator. Supported models depend on the
# backend; jelly, metal, sand, foam, snow, and plasticine are the usual set.
Model = jelly

# Initial material parameter fields. These are only starting values: the
# calibration loop rewrites all four per particle as stages progress.
E = 2e6
Nu = 0.3
ShearModulus = 1e4
BulkModulus = 1e4
Viscosity = 1.0

# Background grid geometry shared by the simulator and the volume estimate.
GridCells = 25
GridLim = 2.0

#######################
# Optional Parameters #
#######################

# Density = 200

[Time]

# Simulator substep and output frame timesteps, in seconds.
SubstepDT = 1e-4
FrameDT = 4e-2

[Preprocess]

# Particles at or below this opacity never reach the simulator.
OpacityThreshold = 0.02

#######################
# Optional Parameters #
#######################

# Rotation sequence applied to the scene before normalization, as parallel
# whitespace-separated lists.
# RotationAxes = x z
# RotationDegrees = 25 10

# World-space distance beyond which particles freeze when the scene carries
# a movable-region point cloud.
# MoveThreshold = 0.05

# Restrict simulation to a box in the rotated world frame, given as exactly
# six values: x0 x1 y0 y1 z0 z1. Particles outside freeze.
# SimArea = 0 1 0 1 0 1

# Side length of the normalized cube the scene is scaled into, and the cube
# center's position in the grid domain.
# CubeSize = 1.0
# Offset = 1 1 1

# Interior particle filling.
# Fill = true
# FillVisualize = false
# FillOpacity = 1.0

[Camera]

# Viewpoint orbit, in grid-frame coordinates. The orbit is mapped back into
# the world frame through the fitted transform.
ViewpointCenter = 1 1 1
UpAxis = 0 0 1
InitAzimuth = 30
InitElevation = 10
InitRadius = 2

#######################
# Optional Parameters #
#######################

# Per-frame deltas; only applied when MoveCamera is set.
# MoveCamera = true
# DeltaAzimuth = 1
# DeltaElevation = 0
# DeltaRadius = 0

[Calibrate]

# Stage geometry: the outer loop runs Batches stages; each stage records
# FramesPerStage frames and scores them as one clip.
Batches = 50
StageCount = 8
FramesPerStage = 16

#######################
# Optional Parameters #
#######################

# Guidance loss weighting applied before averaging over stages.
# LossScale = 3e-4

# Spherical harmonic degree of the appearance basis.
# SHDegree = 3

# Simulator backend and device. Compiled-in backends are listed by the
# command's help; the static backend runs everywhere but has no physics.
# Backend = static
# Device = cpu

# Rendered frame geometry for the compiled-in rasterizer.
# ImageWidth = 512
# ImageHeight = 512
# FOV = 60

[Output]

# Directory which frames, clips, and the loss table are written to.
Output = path/to/output/dir

#######################
# Optional Parameters #
#######################

# ProfileFile = prof.out
# LogFile = log.out

# Write particle-cloud snapshots at fixed pipeline checkpoints.
# Debug = false

# Boundary conditions are additional sections, one per descriptor, keyed to
# a simulation time window:
#
# [BoundaryCondition "floor"]
# Kind = sticky_ground
# Point = 0 0 0.4
# Normal = 0 0 1
# Start = 0
# End = 1e3
# Friction = 0.2`

// RunConfig is the union of every recognized run-configuration section.
type RunConfig struct {
	Input      InputConfig
	Material   MaterialConfig
	Time       TimeConfig
	Preprocess PreprocessConfig
	Camera     CameraConfig
	Calibrate  CalibrateConfig
	Output     OutputConfig

	BoundaryCondition map[string]*BoundaryConditionConfig
}

type InputConfig struct {
	// Required
	Scene string

	// Optional
	Moving         string
	GuidanceConfig string
	Prompt         string
}

type MaterialConfig struct {
	// Required
	Model        string
	E, Nu        float64
	ShearModulus float64
	BulkModulus  float64
	Viscosity    float64
	GridCells    int
	GridLim      float64

	// Optional
	Density float64
}

type TimeConfig struct {
	SubstepDT, FrameDT float64
}

type PreprocessConfig struct {
	// Required
	OpacityThreshold float64

	// Optional
	RotationAxes, RotationDegrees string
	MoveThreshold                 float64
	SimArea                       string
	CubeSize                      float64
	Offset                        string
	Fill                          bool
	FillVisualize                 bool
	FillOpacity                   float64
}

type CameraConfig struct {
	// Required
	ViewpointCenter, UpAxis string
	InitAzimuth             float64
	InitElevation           float64
	InitRadius              float64

	// Optional
	MoveCamera     bool
	DeltaAzimuth   float64
	DeltaElevation float64
	DeltaRadius    float64
}

type CalibrateConfig struct {
	// Required
	Batches, StageCount, FramesPerStage int

	// Optional
	LossScale float64
	SHDegree  int
	Backend   string
	Device    string

	ImageWidth, ImageHeight int
	FOV                     float64
}

type OutputConfig struct {
	// Required
	Output string

	// Optional
	LogFile, ProfileFile string
	Debug                bool
}

type BoundaryConditionConfig struct {
	Kind       string
	Start, End float64

	Point, Normal, Velocity string
	Friction                float64
	Name                    string
}

// DefaultRunWrapper returns a wrapper with every optional parameter at its
// default.
func DefaultRunWrapper() *RunConfig {
	con := &RunConfig{}
	con.Preprocess.MoveThreshold = 0.05
	con.Preprocess.CubeSize = 1.0
	con.Preprocess.Offset = "1 1 1"
	con.Preprocess.FillOpacity = 1.0
	con.Calibrate.LossScale = 3e-4
	con.Calibrate.SHDegree = 3
	con.Calibrate.Backend = "static"
	con.Calibrate.Device = "cpu"
	con.Calibrate.ImageWidth = 512
	con.Calibrate.ImageHeight = 512
	con.Calibrate.FOV = 60
	return con
}

// ReadRunConfig reads and validates a run configuration file.
func ReadRunConfig(fname string) (*RunConfig, error) {
	con := DefaultRunWrapper()
	if err := gcfg.ReadFileInto(con, fname); err != nil {
		return nil, err
	}
	for name, bc := range con.BoundaryCondition {
		if err := bc.CheckInit(name); err != nil {
			return nil, err
		}
	}
	return con, nil
}

func (con *InputConfig) ValidScene() bool          { return con.Scene != "" }
func (con *InputConfig) ValidMoving() bool         { return con.Moving != "" }
func (con *InputConfig) ValidGuidanceConfig() bool { return con.GuidanceConfig != "" }

func (con *MaterialConfig) ValidModel() bool     { return con.Model != "" }
func (con *MaterialConfig) ValidE() bool         { return con.E > 0 }
func (con *MaterialConfig) ValidNu() bool        { return con.Nu > 0 && con.Nu < 0.5 }
func (con *MaterialConfig) ValidGridCells() bool { return con.GridCells > 0 }
func (con *MaterialConfig) ValidGridLim() bool   { return con.GridLim > 0 }

func (con *TimeConfig) ValidSubstepDT() bool { return con.SubstepDT > 0 }
func (con *TimeConfig) ValidFrameDT() bool {
	return con.FrameDT >= con.SubstepDT && con.SubstepDT > 0
}

// StepsPerFrame returns the substep count per output frame.
func (con *TimeConfig) StepsPerFrame() int {
	return int(con.FrameDT / con.SubstepDT)
}

func (con *PreprocessConfig) ValidOpacityThreshold() bool {
	return con.OpacityThreshold >= 0 && con.OpacityThreshold < 1
}

func (con *CameraConfig) ValidInitRadius() bool { return con.InitRadius > 0 }

func (con *CalibrateConfig) ValidBatches() bool        { return con.Batches > 0 }
func (con *CalibrateConfig) ValidStageCount() bool     { return con.StageCount > 0 }
func (con *CalibrateConfig) ValidFramesPerStage() bool { return con.FramesPerStage > 0 }
func (con *CalibrateConfig) ValidSHDegree() bool {
	return con.SHDegree >= 0 && con.SHDegree <= 3
}

func (con *OutputConfig) ValidOutput() bool      { return con.Output != "" }
func (con *OutputConfig) ValidLogFile() bool     { return con.LogFile != "" }
func (con *OutputConfig) ValidProfileFile() bool { return con.ProfileFile != "" }

// CheckInit validates a boundary condition section and attaches its name.
func (bc *BoundaryConditionConfig) CheckInit(name string) error {
	if bc.Kind == "" {
		return fmt.Errorf(
			"Need to specify a Kind for BoundaryCondition '%s'.", name,
		)
	}
	if bc.End < bc.Start {
		return fmt.Errorf(
			"BoundaryCondition '%s' ends at %g, before it starts at %g.",
			name, bc.End, bc.Start,
		)
	}
	bc.Name = name
	return nil
}

// ParseFloats parses a whitespace-separated list of numbers.
func ParseFloats(s string) ([]float32, error) {
	fields := strings.Fields(s)
	out := make([]float32, len(fields))
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, fmt.Errorf("Could not parse '%s' as a number.", f)
		}
		out[i] = float32(x)
	}
	return out, nil
}

// ParseVec parses a whitespace-separated list of exactly three numbers.
func ParseVec(s string) (geom.Vec, error) {
	xs, err := ParseFloats(s)
	if err != nil {
		return geom.Vec{}, err
	}
	if len(xs) != 3 {
		return geom.Vec{}, fmt.Errorf(
			"'%s' must contain exactly 3 values, but contains %d.", s, len(xs),
		)
	}
	return geom.Vec{xs[0], xs[1], xs[2]}, nil
}

// BuildConfig converts the preprocessing and material sections into the
// particle builder's input. The filler collaborator is attached by the
// caller: configuration only decides whether one is wanted.
func (con *RunConfig) BuildConfig(fill particle.Filler) (*particle.BuildConfig, error) {
	p := &con.Preprocess

	cfg := &particle.BuildConfig{
		OpacityThreshold: float32(p.OpacityThreshold),
		MoveThreshold:    float32(p.MoveThreshold),
		CubeSize:         float32(p.CubeSize),
		FillVisualize:    p.FillVisualize,
		FillOpacity:      float32(p.FillOpacity),
		UniformVolume:    con.Material.Model == "sand",
		GridCells:        con.Material.GridCells,
		GridLim:          float32(con.Material.GridLim),
	}
	if p.Fill {
		cfg.Fill = fill
	}

	offset, err := ParseVec(p.Offset)
	if err != nil {
		return nil, err
	}
	cfg.Offset = offset

	for _, axis := range strings.Fields(p.RotationAxes) {
		if len(axis) != 1 || (axis[0] != 'x' && axis[0] != 'y' && axis[0] != 'z') {
			return nil, fmt.Errorf(
				"Rotation axis '%s' must be one of x, y, z.", axis,
			)
		}
		cfg.RotationAxes = append(cfg.RotationAxes, axis[0])
	}
	cfg.RotationDegrees, err = ParseFloats(p.RotationDegrees)
	if err != nil {
		return nil, err
	}

	if p.SimArea != "" {
		cfg.SimArea, err = ParseFloats(p.SimArea)
		if err != nil {
			return nil, err
		}
		if len(cfg.SimArea) != 6 {
			return nil, fmt.Errorf(
				"SimArea must contain exactly 6 values, but contains %d.",
				len(cfg.SimArea),
			)
		}
	}

	return cfg, nil
}

// BoundaryConditions converts the boundary condition sections into the
// simulator's descriptors.
func (con *RunConfig) BoundaryConditions() ([]sim.BoundaryCondition, error) {
	out := []sim.BoundaryCondition{}
	for name, bc := range con.BoundaryCondition {
		desc := sim.BoundaryCondition{
			Kind:     bc.Kind,
			Start:    float32(bc.Start),
			End:      float32(bc.End),
			Friction: float32(bc.Friction),
		}
		var err error
		if bc.Point != "" {
			if desc.Point, err = ParseVec(bc.Point); err != nil {
				return nil, fmt.Errorf("BoundaryCondition '%s': %s", name, err)
			}
		}
		if bc.Normal != "" {
			if desc.Normal, err = ParseVec(bc.Normal); err != nil {
				return nil, fmt.Errorf("BoundaryCondition '%s': %s", name, err)
			}
		}
		if bc.Velocity != "" {
			if desc.Velocity, err = ParseVec(bc.Velocity); err != nil {
				return nil, fmt.Errorf("BoundaryCondition '%s': %s", name, err)
			}
		}
		out = append(out, desc)
	}
	return out, nil
}
