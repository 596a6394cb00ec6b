package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"strings"

	"github.com/phil-mansfield/godeform"
	"github.com/phil-mansfield/godeform/guide"
	"github.com/phil-mansfield/godeform/io"
	"github.com/phil-mansfield/godeform/particle"
	"github.com/phil-mansfield/godeform/render"
	"github.com/phil-mansfield/godeform/sim"
)

type FileGroup struct {
	log, prof *os.File
}

func (fg *FileGroup) Close() {
	if fg.log != nil {
		err := fg.log.Close()
		if err != nil {
			log.Fatal(err.Error())
		}
	}

	if fg.prof != nil {
		pprof.StopCPUProfile()
		err := fg.prof.Close()
		if err != nil {
			log.Fatal(err.Error())
		}
	}
}

// EngineBuilder constructs a simulator backend over a run context.
// Accelerator backends register themselves here at build time; the static
// backend is always compiled in.
type EngineBuilder func(ctx *sim.Context) sim.Engine

var Engines = map[string]EngineBuilder{
	"static": func(ctx *sim.Context) sim.Engine {
		return sim.NewStaticEngine(ctx)
	},
}

// GuidanceBuilder constructs a guidance backend from its configuration.
type GuidanceBuilder func(con *io.GuidanceConfig) (
	guide.Model, guide.PromptProcessor, error,
)

var Guidances = map[string]GuidanceBuilder{
	"static": func(con *io.GuidanceConfig) (
		guide.Model, guide.PromptProcessor, error,
	) {
		return guide.StaticModel{}, guide.TextProcessor{}, nil
	},
}

func main() {
	var (
		calibrate     string
		exampleConfig string
	)
	vars := map[string]*string{
		"Calibrate":     &calibrate,
		"ExampleConfig": &exampleConfig,
	}

	flag.StringVar(
		&calibrate, "Calibrate", "",
		"Configuration file for [Calibrate] mode.",
	)
	flag.StringVar(
		&exampleConfig, "ExampleConfig", "",
		"Prints an example configuration file of the specified type to "+
			"stdout. Accepted arguments are 'Run' and 'Guidance'.",
	)

	flag.Parse()

	modeName, err := getModeName(vars)
	if err != nil {
		log.Fatal(err.Error())
	}

	switch modeName {
	case "Calibrate":
		con, err := io.ReadRunConfig(calibrate)
		if err != nil {
			log.Fatal(err.Error())
		}

		if !con.Input.ValidScene() {
			log.Fatal("Invalid/non-existent 'Scene' value.")
		} else if !con.Material.ValidModel() {
			log.Fatal("Invalid/non-existent 'Model' value.")
		} else if !con.Material.ValidE() {
			log.Fatal("Invalid/non-existent 'E' value.")
		} else if !con.Material.ValidNu() {
			log.Fatal("'Nu' must be in (0, 0.5).")
		} else if !con.Material.ValidGridCells() {
			log.Fatal("Invalid/non-existent 'GridCells' value.")
		} else if !con.Material.ValidGridLim() {
			log.Fatal("Invalid/non-existent 'GridLim' value.")
		} else if !con.Time.ValidSubstepDT() {
			log.Fatal("Invalid/non-existent 'SubstepDT' value.")
		} else if !con.Time.ValidFrameDT() {
			log.Fatal("'FrameDT' must be at least 'SubstepDT'.")
		} else if !con.Preprocess.ValidOpacityThreshold() {
			log.Fatal("'OpacityThreshold' must be in [0, 1).")
		} else if !con.Camera.ValidInitRadius() {
			log.Fatal("Invalid/non-existent 'InitRadius' value.")
		} else if !con.Calibrate.ValidBatches() {
			log.Fatal("Invalid/non-existent 'Batches' value.")
		} else if !con.Calibrate.ValidStageCount() {
			log.Fatal("Invalid/non-existent 'StageCount' value.")
		} else if !con.Calibrate.ValidFramesPerStage() {
			log.Fatal("Invalid/non-existent 'FramesPerStage' value.")
		} else if !con.Calibrate.ValidSHDegree() {
			log.Fatal("'SHDegree' must be in [0, 3].")
		} else if !con.Output.ValidOutput() {
			log.Fatal("Invalid/non-existent 'Output' value.")
		}

		calibrateMain(con)

	case "ExampleConfig":
		switch exampleConfig {
		case "Run":
			fmt.Println(io.ExampleRunFile)
		case "Guidance":
			fmt.Println(io.ExampleGuidanceFile)
		default:
			log.Fatal(
				"Unrecognized 'ExampleConfig' argument. Only recognized " +
					"arguments are 'Run' and 'Guidance'.",
			)
		}
	default:
		panic("Impossible")
	}
}

func getModeName(vars map[string]*string) (string, error) {
	setNames := []string{}

	for name, varPtr := range vars {
		if *varPtr != "" {
			setNames = append(setNames, name)
		}
	}

	if len(setNames) == 0 {
		return "", fmt.Errorf("No flags have been set.")
	}

	if len(setNames) > 1 {
		return "", fmt.Errorf(
			"The following flags were set: %s, but godeform only accepts "+
				"one flag at a time.",
			strings.Join(setNames, ", "),
		)
	}

	return setNames[0], nil
}

func calibrateMain(con *io.RunConfig) {
	fg := setupIO(con)
	defer fg.Close()

	log.Println("Running Calibrate.")

	scene, err := io.ReadSplatScene(con.Input.Scene)
	if err != nil {
		log.Fatal(err.Error())
	}
	if con.Input.ValidMoving() {
		scene.Moving, err = io.ReadPointCloud(con.Input.Moving)
		if err != nil {
			log.Fatal(err.Error())
		}
	}
	log.Printf("Read %d particles from %s.", len(scene.Pos), con.Input.Scene)

	fill := &particle.GridFiller{
		Cells: con.Material.GridCells,
		Lim:   float32(con.Material.GridLim),
	}
	cfg, err := con.BuildConfig(fill)
	if err != nil {
		log.Fatal(err.Error())
	}

	set, frozen, tr, err := particle.Build(scene, cfg)
	if err != nil {
		log.Fatal(err.Error())
	}
	log.Printf("Simulating %d particles (%d filled), %d frozen.",
		set.Part.Total(), set.Part.Filled, frozen.Count())

	builder, ok := Engines[con.Calibrate.Backend]
	if !ok {
		validBackends := []string{}
		for name := range Engines {
			validBackends = append(validBackends, name)
		}
		log.Fatalf("Invalid 'Backend'. The only compiled-in backends are: %s.",
			strings.Join(validBackends, ", "))
	}

	ctx, err := sim.NewContext(
		con.Calibrate.Device, con.Material.GridCells,
		float32(con.Material.GridLim),
	)
	if err != nil {
		log.Fatal(err.Error())
	}
	defer ctx.Close()

	drv := sim.NewDriver(builder(ctx))
	if err = drv.Load(
		set.Pos, set.Vol, set.Cov,
		con.Material.GridCells, float32(con.Material.GridLim),
	); err != nil {
		log.Fatal(err.Error())
	}

	fields := sim.NewFields(
		set.Part.Total(),
		float32(con.Material.E), float32(con.Material.ShearModulus),
		float32(con.Material.BulkModulus), float32(con.Material.Viscosity),
	)
	if err = drv.SetMaterialFields(fields); err != nil {
		log.Fatal(err.Error())
	}
	if err = drv.FinalizeMaterial(); err != nil {
		log.Fatal(err.Error())
	}

	bcs, err := con.BoundaryConditions()
	if err != nil {
		log.Fatal(err.Error())
	}
	if err = drv.SetBoundaryConditions(bcs); err != nil {
		log.Fatal(err.Error())
	}

	model, prompt := setupGuidance(con)

	center, err := io.ParseVec(con.Camera.ViewpointCenter)
	if err != nil {
		log.Fatal(err.Error())
	}
	up, err := io.ParseVec(con.Camera.UpAxis)
	if err != nil {
		log.Fatal(err.Error())
	}

	orbit := render.NewOrbit(
		tr, center, up,
		float32(con.Camera.InitAzimuth), float32(con.Camera.InitElevation),
		float32(con.Camera.InitRadius), float32(con.Camera.DeltaAzimuth),
		float32(con.Camera.DeltaElevation), float32(con.Camera.DeltaRadius),
		con.Camera.MoveCamera,
	)

	if err = os.MkdirAll(con.Output.Output, 0777); err != nil {
		log.Fatal(err.Error())
	}

	man, err := godeform.NewManager(
		godeform.Params{
			Batches:        con.Calibrate.Batches,
			StageCount:     con.Calibrate.StageCount,
			FramesPerStage: con.Calibrate.FramesPerStage,
			StepsPerFrame:  con.Time.StepsPerFrame(),
			SubstepDT:      float32(con.Time.SubstepDT),
			LossScale:      con.Calibrate.LossScale,
			OutputDir:      con.Output.Output,
			ClipDelay:      int(con.Time.FrameDT * 100),
			Debug:          con.Output.Debug,
		},
		godeform.Collaborators{
			Driver:  drv,
			Coupler: render.NewCoupler(tr, set, frozen, con.Calibrate.SHDegree),
			Orbit:   orbit,
			Rasterizer: render.NewPointRasterizer(
				con.Calibrate.ImageWidth, con.Calibrate.ImageHeight,
				float32(con.Calibrate.FOV),
			),
			Guidance: model,
			Prompt:   prompt,
		},
		true,
	)
	if err != nil {
		log.Fatal(err.Error())
	}

	log.Printf("Starting run %s.", man.RunID())
	if err = man.Run(); err != nil {
		log.Fatal(err.Error())
	}
	log.Println("Calibration finished.")
}

// setupGuidance wires the guidance backend. Without a guidance config the
// static backend runs, which makes -Calibrate usable as a pipeline
// shakedown.
func setupGuidance(con *io.RunConfig) (guide.Model, *guide.Prompt) {
	name, gcon := "static", (*io.GuidanceConfig)(nil)
	text := con.Input.Prompt

	if con.Input.ValidGuidanceConfig() {
		var err error
		gcon, err = io.ReadGuidanceConfig(con.Input.GuidanceConfig)
		if err != nil {
			log.Fatal(err.Error())
		}
		if gcon.Guidance.NumFrames != con.Calibrate.FramesPerStage {
			log.Fatalf(
				"Guidance config expects %d frames per clip, but "+
					"'FramesPerStage' is %d.",
				gcon.Guidance.NumFrames, con.Calibrate.FramesPerStage,
			)
		}
		name = gcon.Guidance.Model
		if text == "" {
			text = gcon.PromptProcessor.Prompt
		}
	}

	builder, ok := Guidances[name]
	if !ok {
		validModels := []string{}
		for n := range Guidances {
			validModels = append(validModels, n)
		}
		log.Fatalf(
			"Guidance model '%s' is not compiled in. The only compiled-in "+
				"models are: %s.",
			name, strings.Join(validModels, ", "),
		)
	}

	model, proc, err := builder(gcon)
	if err != nil {
		log.Fatal(err.Error())
	}
	prompt, err := proc.Process(text)
	if err != nil {
		log.Fatal(err.Error())
	}
	return model, prompt
}

func setupIO(con *io.RunConfig) *FileGroup {
	fg := &FileGroup{}
	var err error

	if con.Output.ValidLogFile() {
		fg.log, err = os.Create(con.Output.LogFile)
		if err != nil {
			log.Fatal(err.Error())
		}
		log.SetOutput(fg.log)
	}

	if con.Output.ValidProfileFile() {
		fg.prof, err = os.Create(con.Output.ProfileFile)
		if err != nil {
			log.Fatal(err.Error())
		}
		err = pprof.StartCPUProfile(fg.prof)
		if err != nil {
			log.Fatal(err.Error())
		}
	}

	return fg
}
