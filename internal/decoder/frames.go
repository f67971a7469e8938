package decoder

import (
	"fmt"
	"math"
)

const (
	// SilenceState and SpeechState are the decoder state ids the decoders emit.
	SilenceState int32 = 1
	SpeechState  int32 = 2
)

// FrameGeometry describes how samples are framed.
type FrameGeometry struct {
	SampleRate   int
	FrameShift   float64
	FrameOverlap float64
}

func (g FrameGeometry) validate() error {
	if g.SampleRate <= 0 || g.FrameShift <= 0 || g.FrameOverlap < 0 {
		return fmt.Errorf("invalid frame geometry: sample rate %d, frame shift %g, frame overlap %g", g.SampleRate, g.FrameShift, g.FrameOverlap)
	}
	return nil
}

// Hop returns the number of samples between two frame starts.
func (g FrameGeometry) Hop() int {
	return max(1, int(math.Round(g.FrameShift*float64(g.SampleRate))))
}

// Window returns the number of samples within a frame.
func (g FrameGeometry) Window() int {
	return max(g.Hop(), int(math.Round((g.FrameShift+g.FrameOverlap)*float64(g.SampleRate))))
}

// NumFrames returns the number of complete frames within n samples.
func (g FrameGeometry) NumFrames(n int) int {
	w := g.Window()
	if n < w {
		return 0
	}
	return 1 + (n-w)/g.Hop()
}
