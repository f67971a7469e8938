package vad

import (
	"errors"
	"fmt"
	"math"
)

// epsilon absorbs binary floating point error in frame/chunk arithmetic,
// e.g. 3*0.1/0.01 == 29.999999999999996.
const epsilon = 1e-9

// Options are the immutable parameters of a session.
type Options struct {
	SampleRate int
	// FrameShift is the decoder frame hop in seconds.
	FrameShift float64
	// FrameOverlap is the part of a decoder frame window exceeding the hop, in seconds.
	FrameOverlap float64
	// ChunkTime is the nominal duration of one input chunk in seconds.
	ChunkTime float64

	EnergyThreshold float64
	SpeechOffset    float64

	// PadLength and PostPadLength are given in frames.
	PadLength     float64
	PostPadLength float64
	// MaxIntersegmentLength is the largest gap in frames that still merges two segments.
	MaxIntersegmentLength int
	NumFramesSkipped      int
	// SegmentBufferLen is the desired audio history in frames.
	SegmentBufferLen int

	// InitialFrameOffset is the global frame offset of a new session.
	InitialFrameOffset int
	// TailFrameDeficit is the number of frames the decoder lags behind at the
	// end of a pass. It is added to the global frame offset on every reset.
	TailFrameDeficit int

	chunkCountPerPass int
	samplesPerChunk   int
}

// NewOptions validates the given options and computes the derived fields.
func NewOptions(o Options) (Options, error) {
	var errs []error

	if o.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be positive but was %d", o.SampleRate))
	}
	if o.FrameShift <= 0 {
		errs = append(errs, fmt.Errorf("frame shift must be positive but was %g", o.FrameShift))
	}
	if o.FrameOverlap < 0 {
		errs = append(errs, fmt.Errorf("frame overlap must not be negative but was %g", o.FrameOverlap))
	}
	if o.ChunkTime <= 0 {
		errs = append(errs, fmt.Errorf("chunk time must be positive but was %g", o.ChunkTime))
	}
	if o.PadLength < 0 || o.PostPadLength < 0 {
		errs = append(errs, fmt.Errorf("pad lengths must not be negative but were %g and %g", o.PadLength, o.PostPadLength))
	}
	if o.MaxIntersegmentLength < 0 {
		errs = append(errs, fmt.Errorf("max intersegment length must not be negative but was %d", o.MaxIntersegmentLength))
	}
	if o.NumFramesSkipped < 0 {
		errs = append(errs, fmt.Errorf("number of skipped frames must not be negative but was %d", o.NumFramesSkipped))
	}
	if o.SegmentBufferLen < 0 {
		errs = append(errs, fmt.Errorf("segment buffer length must not be negative but was %d", o.SegmentBufferLen))
	}
	if o.InitialFrameOffset < 0 || o.TailFrameDeficit < 0 {
		errs = append(errs, fmt.Errorf("frame offsets must not be negative but were %d and %d", o.InitialFrameOffset, o.TailFrameDeficit))
	}

	if err := errors.Join(errs...); err != nil {
		return o, fmt.Errorf("invalid vad options: %w", err)
	}

	passTime := float64(o.SegmentBufferLen)*o.FrameShift + o.FrameOverlap
	o.chunkCountPerPass = max(1, int(math.Ceil(passTime/o.ChunkTime-epsilon)))
	o.samplesPerChunk = max(1, int(math.Round(float64(o.SampleRate)*o.ChunkTime)))

	return o, nil
}

// ChunkCountPerPass returns the number of chunks between two decode passes.
func (o Options) ChunkCountPerPass() int {
	return o.chunkCountPerPass
}

// SamplesPerChunk returns the number of samples within a nominal chunk.
func (o Options) SamplesPerChunk() int {
	return o.samplesPerChunk
}

// CarryOverSamples returns the size of the audio window kept across a decoder reset.
func (o Options) CarryOverSamples() int {
	return o.chunkCountPerPass * o.samplesPerChunk
}
