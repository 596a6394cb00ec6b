package io

import (
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/png"
	"os"
	"path"

	"github.com/phil-mansfield/godeform/geom"
)

// WriteFrame writes one rendered frame as a zero-padded PNG inside dir.
func WriteFrame(dir string, frame int, img image.Image) error {
	f, err := os.Create(FramePath(dir, frame))
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

// FramePath returns the file name WriteFrame uses for a frame index.
func FramePath(dir string, frame int) string {
	return path.Join(dir, fmt.Sprintf("%05d.png", frame))
}

// AssembleClip packs an ordered frame sequence into an animated GIF.
// delay is in hundredths of a second per frame.
func AssembleClip(fname string, frames []image.Image, delay int) error {
	if len(frames) == 0 {
		return fmt.Errorf("Cannot assemble a clip from zero frames.")
	}

	out := &gif.GIF{}
	for _, frame := range frames {
		pal := image.NewPaletted(frame.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(pal, frame.Bounds(), frame, image.Point{})
		out.Image = append(out.Image, pal)
		out.Delay = append(out.Delay, delay)
	}

	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer f.Close()
	return gif.EncodeAll(f, out)
}

// WriteSnapshot dumps a particle position cloud as an ascii PLY file. These
// are the debug checkpoints written when the Debug flag is set; any point
// cloud viewer opens them.
func WriteSnapshot(fname string, pos []geom.Vec) error {
	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f,
		"ply\nformat ascii 1.0\nelement vertex %d\n"+
			"property float x\nproperty float y\nproperty float z\n"+
			"end_header\n", len(pos),
	)
	if err != nil {
		return err
	}

	for i := range pos {
		_, err = fmt.Fprintf(f, "%g %g %g\n", pos[i][0], pos[i][1], pos[i][2])
		if err != nil {
			return err
		}
	}
	return nil
}

// AppendLoss appends one stage's loss and mean field values to the run's
// loss table. The table is whitespace-delimited with one row per stage so
// the plotting script can read it back directly.
func AppendLoss(fname string, stage int, loss float64, means [4]float32) error {
	f, err := os.OpenFile(fname, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "%5d %15g %15g %15g %15g %15g\n",
		stage, loss, means[0], means[1], means[2], means[3])
	return err
}
