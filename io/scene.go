package io

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chewxy/math32"

	"github.com/phil-mansfield/godeform/geom"
	"github.com/phil-mansfield/godeform/particle"
)

// splatEndianness is the byte order reconstruction tools write their PLY
// files in. No tool in the wild writes big-endian splats.
var splatEndianness = binary.LittleEndian

// plyHeader is the parsed header of a binary PLY file: the vertex count and
// the ordered per-vertex property names.
type plyHeader struct {
	count int
	props []string
}

func readPlyHeader(r *bufio.Reader, fname string) (*plyHeader, error) {
	magic, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(magic) != "ply" {
		return nil, fmt.Errorf("'%s' is not a PLY file.", fname)
	}

	hd := &plyHeader{}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("'%s' ends inside its header.", fname)
		}
		words := strings.Fields(line)
		if len(words) == 0 {
			continue
		}

		switch words[0] {
		case "comment":
		case "format":
			if len(words) < 2 || words[1] != "binary_little_endian" {
				return nil, fmt.Errorf(
					"'%s' has format '%s', but only binary_little_endian "+
						"scenes are supported.", fname, strings.Join(words[1:], " "),
				)
			}
		case "element":
			if len(words) != 3 || words[1] != "vertex" {
				return nil, fmt.Errorf(
					"'%s' contains an element other than vertex.", fname,
				)
			}
			hd.count, err = strconv.Atoi(words[2])
			if err != nil || hd.count <= 0 {
				return nil, fmt.Errorf(
					"'%s' has an invalid vertex count '%s'.", fname, words[2],
				)
			}
		case "property":
			if len(words) != 3 || words[1] != "float" {
				return nil, fmt.Errorf(
					"'%s' has non-float property '%s'.",
					fname, strings.Join(words[1:], " "),
				)
			}
			hd.props = append(hd.props, words[2])
		case "end_header":
			if hd.count == 0 {
				return nil, fmt.Errorf("'%s' declares no vertices.", fname)
			}
			return hd, nil
		default:
			return nil, fmt.Errorf(
				"'%s' has an unrecognized header line '%s'.",
				fname, strings.TrimSpace(line),
			)
		}
	}
}

// col returns the property column index of name, or an error naming the file
// for the missing-property message.
func (hd *plyHeader) col(name, fname string) (int, error) {
	for i, p := range hd.props {
		if p == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("'%s' is missing the '%s' property.", fname, name)
}

func (hd *plyHeader) hasCol(name string) bool {
	for _, p := range hd.props {
		if p == name {
			return true
		}
	}
	return false
}

// ReadSplatScene reads a reconstructed point scene from the standard splat
// PLY layout: positions, logit opacities, log scales, rotation quaternions,
// and spherical harmonic coefficients split into a dc term and higher bands.
// Stored activations are undone here, and per-particle covariances are
// assembled from the scale and rotation columns, so the returned Scene is
// ready for the particle builder.
func ReadSplatScene(fname string) (*particle.Scene, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	hd, err := readPlyHeader(r, fname)
	if err != nil {
		return nil, err
	}

	var cols struct {
		pos     [3]int
		opacity int
		scale   [3]int
		rot     [4]int
		dc      [3]int
		rest    [45]int
	}

	for k, name := range []string{"x", "y", "z"} {
		if cols.pos[k], err = hd.col(name, fname); err != nil {
			return nil, err
		}
	}
	if cols.opacity, err = hd.col("opacity", fname); err != nil {
		return nil, err
	}
	for k := 0; k < 3; k++ {
		name := fmt.Sprintf("scale_%d", k)
		if cols.scale[k], err = hd.col(name, fname); err != nil {
			return nil, err
		}
	}
	for k := 0; k < 4; k++ {
		name := fmt.Sprintf("rot_%d", k)
		if cols.rot[k], err = hd.col(name, fname); err != nil {
			return nil, err
		}
	}
	for k := 0; k < 3; k++ {
		name := fmt.Sprintf("f_dc_%d", k)
		if cols.dc[k], err = hd.col(name, fname); err != nil {
			return nil, err
		}
	}
	// Higher bands are optional: degree-0 scenes simply stop at the dc term.
	hasRest := hd.hasCol("f_rest_0")
	if hasRest {
		for k := 0; k < 45; k++ {
			name := fmt.Sprintf("f_rest_%d", k)
			if cols.rest[k], err = hd.col(name, fname); err != nil {
				return nil, err
			}
		}
	}

	row := make([]float32, len(hd.props))
	s := &particle.Scene{
		Pos:     make([]geom.Vec, hd.count),
		Cov:     make([]geom.Sym, hd.count),
		Opacity: make([]float32, hd.count),
		SH:      make([][]float32, hd.count),
	}

	for i := 0; i < hd.count; i++ {
		if err := binary.Read(r, splatEndianness, row); err != nil {
			return nil, fmt.Errorf(
				"'%s' ends at vertex %d of %d.", fname, i, hd.count,
			)
		}

		s.Pos[i] = geom.Vec{
			row[cols.pos[0]], row[cols.pos[1]], row[cols.pos[2]],
		}
		s.Opacity[i] = sigmoid(row[cols.opacity])
		s.Cov[i] = splatCov(
			row[cols.scale[0]], row[cols.scale[1]], row[cols.scale[2]],
			row[cols.rot[0]], row[cols.rot[1]],
			row[cols.rot[2]], row[cols.rot[3]],
		)

		sh := make([]float32, particle.SHCoeffs)
		for c := 0; c < 3; c++ {
			sh[c] = row[cols.dc[c]]
		}
		if hasRest {
			// Stored channel major, 15 higher bands per channel; the pipeline
			// wants band major.
			for c := 0; c < 3; c++ {
				for b := 1; b < 16; b++ {
					sh[3*b+c] = row[cols.rest[c*15+b-1]]
				}
			}
		}
		s.SH[i] = sh
	}

	return s, nil
}

// ReadPointCloud reads a bare ascii PLY point cloud, the format WriteSnapshot
// emits. Movable-region clouds are given this way.
func ReadPointCloud(fname string) ([]geom.Vec, error) {
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(data), "\n")
	start, count := 0, -1
	for i, line := range lines {
		words := strings.Fields(line)
		if len(words) == 3 && words[0] == "element" && words[1] == "vertex" {
			if count, err = strconv.Atoi(words[2]); err != nil {
				return nil, fmt.Errorf(
					"'%s' has an invalid vertex count '%s'.", fname, words[2],
				)
			}
		}
		if strings.TrimSpace(line) == "end_header" {
			start = i + 1
			break
		}
	}
	if start == 0 || count < 0 {
		return nil, fmt.Errorf("'%s' is not an ascii PLY point cloud.", fname)
	}
	if len(lines)-start < count {
		return nil, fmt.Errorf(
			"'%s' declares %d vertices but contains %d.",
			fname, count, len(lines)-start,
		)
	}

	out := make([]geom.Vec, count)
	for i := 0; i < count; i++ {
		xs, err := ParseFloats(lines[start+i])
		if err != nil {
			return nil, fmt.Errorf("'%s' vertex %d: %s", fname, i, err)
		}
		if len(xs) != 3 {
			return nil, fmt.Errorf(
				"'%s' vertex %d has %d coordinates.", fname, i, len(xs),
			)
		}
		out[i] = geom.Vec{xs[0], xs[1], xs[2]}
	}
	return out, nil
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

// splatCov assembles a covariance from stored log scales and a rotation
// quaternion: with M = R * diag(exp(s)), the covariance is M * transpose(M).
func splatCov(s0, s1, s2, qw, qx, qy, qz float32) geom.Sym {
	r := geom.RotationFromQuat(qw, qx, qy, qz)
	e0, e1, e2 := math32.Exp(s0), math32.Exp(s1), math32.Exp(s2)

	var m geom.Mat33
	for i := 0; i < 3; i++ {
		m[3*i+0] = r[3*i+0] * e0
		m[3*i+1] = r[3*i+1] * e1
		m[3*i+2] = r[3*i+2] * e2
	}
	return geom.PackSym(m.Mul(m.Transpose()))
}
