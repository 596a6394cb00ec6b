package guide

import (
	"fmt"
	"image"
)

// StaticModel is the compiled-in shakedown backend: it scores every clip
// zero and its backward pass does nothing. Paired with the static simulator
// backend it lets a full calibration run execute without an accelerator or
// a diffusion model, which is how the pipeline is smoke-tested.
type StaticModel struct{}

// Score implements Model with a single zero loss term.
func (StaticModel) Score(
	clip []image.Image, prompt *Prompt, pose PoseMeta,
) (map[string]float64, error) {
	if len(clip) == 0 {
		return nil, fmt.Errorf("Cannot score an empty clip.")
	}
	if pose.FrameCount != len(clip) {
		return nil, fmt.Errorf(
			"Pose metadata declares %d frames but the clip has %d.",
			pose.FrameCount, len(clip),
		)
	}
	return map[string]float64{"loss_static": 0}, nil
}

// Backward implements Model as a no-op.
func (StaticModel) Backward(loss float64) error { return nil }

// TextProcessor is the trivial prompt processor: it passes the prompt text
// through with no embedding. Guidance backends that need a real embedding
// bring their own processor.
type TextProcessor struct{}

// Process implements PromptProcessor.
func (TextProcessor) Process(text string) (*Prompt, error) {
	return &Prompt{Text: text}, nil
}
