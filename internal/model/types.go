package model

import "fmt"

// Segment is a speech segment in absolute recording time (seconds).
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (s Segment) Duration() float64 {
	return s.End - s.Start
}

func (s Segment) String() string {
	return fmt.Sprintf("[%g, %g]", s.Start, s.End)
}

// SegmentEvent is emitted whenever a session finalizes a segment.
type SegmentEvent struct {
	WavID string `json:"wavId"`
	Seq   int64  `json:"seq"`
	Segment
}

// UtteranceID returns the segment identifier as written to segment files.
func (e SegmentEvent) UtteranceID() string {
	return fmt.Sprintf("%s_%d", e.WavID, e.Seq)
}
