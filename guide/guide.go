/*package guide defines the contract with the text-conditioned video
guidance model that scores rendered clips, and the loss-term bookkeeping
around it.
*/
package guide

import (
	"fmt"
	"image"
	"math"
	"strings"
)

// PoseMeta is the camera pose metadata passed to the guidance model
// alongside a clip.
type PoseMeta struct {
	Elevation, Azimuth, Radius float32
	FrameCount                 int
}

// Prompt is a processed text-prompt embedding. Its contents are opaque to
// the pipeline; the prompt processor that produced it and the guidance
// model that consumes it agree on the encoding.
type Prompt struct {
	Text      string
	Embedding []float32
}

// PromptProcessor turns prompt text into the embedding the guidance model
// expects.
type PromptProcessor interface {
	Process(text string) (*Prompt, error)
}

// Model scores an ordered frame sequence against a prompt and exposes the
// backward pass that pushes the score's gradient into the recorded
// simulation graph.
type Model interface {
	// Score returns named scalar loss terms for the clip. Terms whose name
	// carries the "loss_" prefix participate in optimization; anything else
	// is diagnostic.
	Score(clip []image.Image, prompt *Prompt, pose PoseMeta) (map[string]float64, error)

	// Backward propagates the scalar loss back through the model and the
	// rasterizer into the simulated state gradients.
	Backward(loss float64) error
}

// LossPrefix identifies optimization loss terms in a Score result.
const LossPrefix = "loss_"

// SumLosses folds a Score result into the single optimization scalar: the
// sum of all loss_-prefixed terms. A result with no such terms is a
// collaborator failure, and a non-finite sum aborts rather than letting a
// diverged optimization continue silently.
func SumLosses(out map[string]float64) (float64, error) {
	if len(out) == 0 {
		return 0, fmt.Errorf("Guidance model returned no output terms.")
	}

	sum, found := 0.0, false
	for name, value := range out {
		if !strings.HasPrefix(name, LossPrefix) {
			continue
		}
		found = true
		sum += value
	}

	if !found {
		return 0, fmt.Errorf(
			"Guidance model returned %d terms, none prefixed with %q.",
			len(out), LossPrefix,
		)
	}
	if math.IsNaN(sum) || math.IsInf(sum, 0) {
		return 0, fmt.Errorf("Guidance loss is not finite: %g.", sum)
	}

	return sum, nil
}
