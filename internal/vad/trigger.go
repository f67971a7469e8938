package vad

import "math"

// PassTrigger decides whether a chunk completes a decode pass.
type PassTrigger struct {
	ChunkTime         float64
	FrameShift        float64
	NumFramesSkipped  int
	ChunkCountPerPass int
}

func newPassTrigger(o Options) PassTrigger {
	return PassTrigger{
		ChunkTime:         o.ChunkTime,
		FrameShift:        o.FrameShift,
		NumFramesSkipped:  o.NumFramesSkipped,
		ChunkCountPerPass: o.ChunkCountPerPass(),
	}
}

// ShouldRun reports whether a pass must run after the given number of chunks
// has been received since the last reset. A pass needs both a pass boundary
// and at least one decodable frame beyond the skipped head.
func (t PassTrigger) ShouldRun(chunkCount int) bool {
	if chunkCount <= 0 || chunkCount%t.ChunkCountPerPass != 0 {
		return false
	}
	return t.DecodableFrames(chunkCount) > 0
}

// DecodableFrames estimates the frames available after the given number of
// chunks, minus the skipped frames.
func (t PassTrigger) DecodableFrames(chunkCount int) int {
	frames := int(math.Floor(float64(chunkCount)*t.ChunkTime/t.FrameShift + epsilon))
	return frames - t.NumFramesSkipped
}
