// Package segmenter derives speech segments from a decoder alignment.
package segmenter

import (
	"slices"

	"github.com/mgoltzsche/online-vad/internal/vad"
)

// Segmenter builds segments from phone runs and post-processes them.
type Segmenter struct {
	// SilencePhones are removed from the segmentation.
	SilencePhones []int32
	// MinSegmentLength is the minimum length in frames a segment must have to be kept.
	MinSegmentLength int
	// MergeLabels are relabelled to MergeDstLabel before adjacent segments are merged.
	MergeLabels   []int32
	MergeDstLabel int32
	// MaxMergeGap is the largest number of frames between two segments with
	// the same label that are merged into one.
	MaxMergeGap int
}

func (s *Segmenter) Segment(phones []vad.PhoneRun) ([]vad.RawSegment, error) {
	segments := InsertFromAlignment(phones)
	segments = s.RemoveShortSegments(segments)
	segments = s.MergeAdjacentSameLabel(segments)
	return segments, nil
}

// InsertFromAlignment creates a segment for every phone run.
func InsertFromAlignment(phones []vad.PhoneRun) []vad.RawSegment {
	segments := make([]vad.RawSegment, 0, len(phones))
	frame := 0

	for _, p := range phones {
		if p.Count <= 0 {
			continue
		}

		if n := len(segments); n > 0 && segments[n-1].Label == p.Phone {
			segments[n-1].EndFrame += p.Count
		} else {
			segments = append(segments, vad.RawSegment{
				StartFrame: frame,
				EndFrame:   frame + p.Count - 1,
				Label:      p.Phone,
			})
		}

		frame += p.Count
	}

	return segments
}

// RemoveShortSegments drops silence segments and segments shorter than MinSegmentLength.
func (s *Segmenter) RemoveShortSegments(segments []vad.RawSegment) []vad.RawSegment {
	return slices.DeleteFunc(segments, func(seg vad.RawSegment) bool {
		return slices.Contains(s.SilencePhones, seg.Label) || seg.Length() < s.MinSegmentLength
	})
}

// MergeAdjacentSameLabel relabels MergeLabels and merges neighbouring
// segments with equal labels.
func (s *Segmenter) MergeAdjacentSameLabel(segments []vad.RawSegment) []vad.RawSegment {
	merged := make([]vad.RawSegment, 0, len(segments))

	for _, seg := range segments {
		if slices.Contains(s.MergeLabels, seg.Label) {
			seg.Label = s.MergeDstLabel
		}

		if n := len(merged); n > 0 {
			last := &merged[n-1]
			if last.Label == seg.Label && seg.StartFrame-last.EndFrame-1 <= s.MaxMergeGap {
				last.EndFrame = max(last.EndFrame, seg.EndFrame)
				continue
			}
		}

		merged = append(merged, seg)
	}

	return merged
}
