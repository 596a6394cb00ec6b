package io

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const ExampleGuidanceFile = `# Guidance model configuration.

guidance:
  # Model family the guidance backend loads.
  model: modelscope
  # Classifier-free guidance scale.
  guidance_scale: 100.0
  # Fraction of the diffusion schedule sampled during scoring.
  min_step_percent: 0.02
  max_step_percent: 0.98
  # Frames per scored clip; must match FramesPerStage in the run config.
  num_frames: 16

prompt_processor:
  # Prompt text is usually supplied on the command line and overrides this.
  prompt: ""
  negative_prompt: "low quality, static, motionless"
`

// GuidanceConfig mirrors the guidance YAML file. It is handed to whatever
// guidance backend the run wires in; only the fields the core reads are
// validated here.
type GuidanceConfig struct {
	Guidance struct {
		Model          string  `yaml:"model"`
		GuidanceScale  float64 `yaml:"guidance_scale"`
		MinStepPercent float64 `yaml:"min_step_percent"`
		MaxStepPercent float64 `yaml:"max_step_percent"`
		NumFrames      int     `yaml:"num_frames"`
	} `yaml:"guidance"`

	PromptProcessor struct {
		Prompt         string `yaml:"prompt"`
		NegativePrompt string `yaml:"negative_prompt"`
	} `yaml:"prompt_processor"`
}

// ReadGuidanceConfig reads and validates a guidance configuration file.
func ReadGuidanceConfig(fname string) (*GuidanceConfig, error) {
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}

	con := &GuidanceConfig{}
	if err := yaml.Unmarshal(data, con); err != nil {
		return nil, err
	}

	if con.Guidance.Model == "" {
		return nil, fmt.Errorf("Guidance config '%s' does not name a model.",
			fname)
	}
	if con.Guidance.NumFrames <= 0 {
		return nil, fmt.Errorf(
			"Guidance config '%s' needs a positive num_frames.", fname,
		)
	}
	return con, nil
}
