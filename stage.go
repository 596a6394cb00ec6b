package godeform

import (
	"github.com/phil-mansfield/godeform/sim"
)

// UpdateKind selects how a normalized gradient is folded into a material
// field.
type UpdateKind int

const (
	// Relative scales the field by (1 + magnitude*gradient).
	Relative UpdateKind = iota
	// Additive shifts the field by magnitude*gradient, then clamps it to
	// [Floor, Ceiling].
	Additive
)

// UpdateRule is the per-quantity tuning of the gradient update step. The
// normalize-and-update procedure is identical for all four quantities;
// only these numbers differ.
type UpdateRule struct {
	Kind           UpdateKind
	Magnitude      float32
	Floor, Ceiling float32
}

// DefaultUpdateRules returns the reference tuning: the elastic modulus
// takes relative steps, the plasticity moduli and viscosity take clamped
// additive steps of increasing aggressiveness.
func DefaultUpdateRules() [sim.QuantityNum]UpdateRule {
	return [sim.QuantityNum]UpdateRule{
		sim.ElasticModulus: {Kind: Relative, Magnitude: -0.4},
		sim.ShearModulus:   {Kind: Additive, Magnitude: 1.0, Floor: 1e-8, Ceiling: 1e8},
		sim.BulkModulus:    {Kind: Additive, Magnitude: 1.0, Floor: 1e-8, Ceiling: 1e8},
		sim.Viscosity:      {Kind: Additive, Magnitude: 2.0, Floor: 1e-8, Ceiling: 1e6},
	}
}

// normalizeGrad linearly rescales grad into [-halfSpan, +halfSpan]: shift
// by the minimum, divide by the range, recenter on zero. A degenerate
// (constant) gradient yields all zeros instead of a division by zero; the
// calibration loop treats that as a recoverable no-op update.
func normalizeGrad(dst, grad []float32, halfSpan float32) {
	min, max := grad[0], grad[0]
	for _, g := range grad[1:] {
		if g < min {
			min = g
		}
		if g > max {
			max = g
		}
	}

	if max == min {
		for i := range dst {
			dst[i] = 0
		}
		return
	}

	span := max - min
	for i, g := range grad {
		dst[i] = ((g-min)/span - 0.5) * 2 * halfSpan
	}
}

// applyUpdate mutates vals in place according to the rule, with norm
// already normalized into its symmetric interval.
func applyUpdate(vals, norm []float32, rule UpdateRule) {
	switch rule.Kind {
	case Relative:
		for i := range vals {
			vals[i] *= 1 + rule.Magnitude*norm[i]
		}
	case Additive:
		for i := range vals {
			vals[i] += rule.Magnitude * norm[i]
			if vals[i] < rule.Floor {
				vals[i] = rule.Floor
			}
			if vals[i] > rule.Ceiling {
				vals[i] = rule.Ceiling
			}
		}
	}
}

// updateFields runs the normalize-and-update step for all four material
// quantities against the gradients left by the backward pass.
func updateFields(fields *sim.Fields, rules [sim.QuantityNum]UpdateRule) {
	norm := make([]float32, fields.Len())
	for q := sim.Quantity(0); q < sim.QuantityNum; q++ {
		normalizeGrad(norm, fields.Grad(q), 0.5)
		applyUpdate(fields.Values(q), norm, rules[q])
	}
}

// fieldMeans returns the mean of each quantity, for the loss table.
func fieldMeans(fields *sim.Fields) [4]float32 {
	var out [4]float32
	n := float32(fields.Len())
	for q := sim.Quantity(0); q < sim.QuantityNum; q++ {
		var sum float32
		for _, v := range fields.Values(q) {
			sum += v
		}
		out[q] = sum / n
	}
	return out
}
