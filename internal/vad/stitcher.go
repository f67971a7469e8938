package vad

import (
	"github.com/mgoltzsche/online-vad/internal/model"
)

// State is the mutable bookkeeping of a session.
type State struct {
	// Audio holds the samples received since the last reset.
	Audio AudioBuffer
	// WaveMemory is the carry-over window fed into the decoder on reset.
	WaveMemory []float32
	// ChunkCount is the number of chunks received since the last reset.
	ChunkCount int
	// GlobalFrameOffset maps frame 0 of the current decoder onto the session timeline.
	GlobalFrameOffset int
	OldFramesDecoded  int
	NewFramesDecoded  int
	// Pending is the candidate segment that may still be extended.
	Pending    model.Segment
	SegmentSeq int64
	Continuing bool
}

// Pass is the outcome of stitching one decode pass.
type Pass struct {
	// Trace lists every boundary crossed during the pass, including the
	// still-open tail when it has a positive duration.
	Trace []model.Segment
	// Emitted lists the segments finalized during the pass.
	Emitted []model.SegmentEvent
}

// Stitcher converts the raw segments of a pass into finalized segments.
type Stitcher struct {
	FrameShift            float64
	FrameOverlap          float64
	PadLength             float64
	PostPadLength         float64
	MaxIntersegmentLength int
	NumFramesSkipped      int
}

func newStitcher(o Options) Stitcher {
	return Stitcher{
		FrameShift:            o.FrameShift,
		FrameOverlap:          o.FrameOverlap,
		PadLength:             o.PadLength,
		PostPadLength:         o.PostPadLength,
		MaxIntersegmentLength: o.MaxIntersegmentLength,
		NumFramesSkipped:      o.NumFramesSkipped,
	}
}

// Stitch merges the raw segments of a pass into the pending segment and
// finalizes the pending segment whenever a gap larger than the merge
// tolerance separates it from the next candidate.
// The given state is not modified, the updated state is returned instead.
func (s Stitcher) Stitch(st State, wavID string, raw []RawSegment) (State, Pass) {
	var pass Pass

	if len(raw) == 0 || raw[0].Length() <= 1 {
		st.Continuing = true
		return st, pass
	}

	base := float64(st.GlobalFrameOffset+max(0, st.OldFramesDecoded-s.NumFramesSkipped)) * s.FrameShift
	maxGap := float64(s.MaxIntersegmentLength) * s.FrameShift
	prevStart, prevEnd := st.Pending.Start, st.Pending.End

	for _, seg := range raw {
		currStart := base + float64(seg.StartFrame)*s.FrameShift
		currEnd := base + float64(seg.EndFrame+1)*s.FrameShift + s.FrameOverlap
		pending := prevEnd > 0

		currStart -= s.PadLength * s.FrameShift
		if pending {
			prevEnd += s.PadLength * s.FrameShift
			if currStart-prevEnd < maxGap {
				currStart = prevStart
			}
		}

		currStart -= s.PostPadLength * s.FrameShift
		if pending {
			prevEnd += s.PostPadLength * s.FrameShift
			// Touching or overlapping candidates always continue the pending segment.
			if currStart <= prevEnd || currStart-prevEnd < maxGap {
				currStart = prevStart
			}
		}

		if currStart-prevEnd > 0 && prevEnd-prevStart > 0 {
			st.SegmentSeq++
			st.Continuing = false
			pass.Emitted = append(pass.Emitted, newSegmentEvent(wavID, st.SegmentSeq, prevStart, prevEnd))
		} else {
			st.Continuing = true
		}

		pass.Trace = append(pass.Trace, model.Segment{Start: prevStart, End: prevEnd})
		prevStart, prevEnd = currStart, currEnd
	}

	if prevEnd-prevStart > 0 {
		pass.Trace = append(pass.Trace, model.Segment{Start: prevStart, End: prevEnd})
	}

	st.Pending = model.Segment{Start: prevStart, End: prevEnd}

	return st, pass
}

// Flush finalizes the pending segment unconditionally, even when it is empty.
func (s Stitcher) Flush(st State, wavID string) (State, model.SegmentEvent) {
	st.SegmentSeq++
	return st, newSegmentEvent(wavID, st.SegmentSeq, st.Pending.Start, st.Pending.End)
}

// newSegmentEvent clamps padding that reaches before the recording start
// and guarantees start <= end.
func newSegmentEvent(wavID string, seq int64, start, end float64) model.SegmentEvent {
	start = max(0, start)
	end = max(start, end)
	return model.SegmentEvent{
		WavID:   wavID,
		Seq:     seq,
		Segment: model.Segment{Start: start, End: end},
	}
}
