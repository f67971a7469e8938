package vad

import (
	"time"

	"github.com/mgoltzsche/online-vad/internal/model"
)

// Decoder is the feature extraction and decoding service a session drives.
// A decoder instance accumulates state for every sample it accepts, which is
// why the session replaces it periodically.
type Decoder interface {
	AcceptWaveform(sampleRate int, samples []float32) error
	// Advance decodes all frames that became available since the last call.
	Advance() error
	NumFramesReady() int
	// BestPathAlignment returns the frame-aligned decoder state ids decoded so far.
	BestPathAlignment(partial bool) ([]int32, error)
	// FinishInput signals that no more audio will be accepted.
	FinishInput() error
	Close() error
}

// DecoderFactory creates a fresh decoder instance.
type DecoderFactory interface {
	NewDecoder() (Decoder, error)
}

// DecoderFactoryFunc adapts a function to the DecoderFactory interface.
type DecoderFactoryFunc func() (Decoder, error)

func (f DecoderFactoryFunc) NewDecoder() (Decoder, error) {
	return f()
}

// PhoneRun is a phone id repeated for Count consecutive frames.
type PhoneRun struct {
	Phone int32
	Count int
}

// PhoneGrouper groups an alignment into phones.
type PhoneGrouper interface {
	GroupPhones(alignment []int32) ([]PhoneRun, error)
}

// RawSegment is a segment in frames, local to a single decode pass.
// StartFrame and EndFrame are both inclusive.
type RawSegment struct {
	StartFrame int
	EndFrame   int
	Label      int32
}

func (s RawSegment) Length() int {
	return s.EndFrame - s.StartFrame + 1
}

// Segmenter turns a phone sequence into post-processed speech segments.
type Segmenter interface {
	Segment(phones []PhoneRun) ([]RawSegment, error)
}

// Sink persists finalized segments.
type Sink interface {
	WriteSegment(evt model.SegmentEvent) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(model.SegmentEvent) error

func (f SinkFunc) WriteSegment(evt model.SegmentEvent) error {
	return f(evt)
}

// MultiSink writes every event to all of the given sinks in order.
func MultiSink(sinks ...Sink) Sink {
	return SinkFunc(func(evt model.SegmentEvent) error {
		for _, s := range sinks {
			if err := s.WriteSegment(evt); err != nil {
				return err
			}
		}
		return nil
	})
}

// Observer is notified about session activity, e.g. to record metrics.
type Observer interface {
	PassCompleted(duration time.Duration)
	PassFailed()
	SegmentEmitted(seg model.Segment)
	DecoderReset()
}

type nopObserver struct{}

func (nopObserver) PassCompleted(time.Duration)  {}
func (nopObserver) PassFailed()                  {}
func (nopObserver) SegmentEmitted(model.Segment) {}
func (nopObserver) DecoderReset()                {}
