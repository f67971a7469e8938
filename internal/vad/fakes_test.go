package vad

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mgoltzsche/online-vad/internal/model"
)

const (
	silenceID int32 = 1
	speechID  int32 = 2
)

// fakeDecoder decodes one frame per sample: samples above 0.5 are speech.
type fakeDecoder struct {
	samples      []float32
	frames       int
	finished     bool
	closed       bool
	alignmentErr error
}

func (d *fakeDecoder) AcceptWaveform(_ int, samples []float32) error {
	if d.closed {
		return errors.New("decoder closed")
	}
	d.samples = append(d.samples, samples...)
	return nil
}

func (d *fakeDecoder) Advance() error {
	d.frames = len(d.samples)
	return nil
}

func (d *fakeDecoder) NumFramesReady() int {
	return d.frames
}

func (d *fakeDecoder) BestPathAlignment(bool) ([]int32, error) {
	if d.alignmentErr != nil {
		return nil, d.alignmentErr
	}
	alignment := make([]int32, d.frames)
	for i, v := range d.samples[:d.frames] {
		alignment[i] = silenceID
		if v > 0.5 {
			alignment[i] = speechID
		}
	}
	return alignment, nil
}

func (d *fakeDecoder) FinishInput() error {
	d.finished = true
	return nil
}

func (d *fakeDecoder) Close() error {
	d.closed = true
	return nil
}

type fakeDecoderFactory struct {
	created      []*fakeDecoder
	alignmentErr error
}

func (f *fakeDecoderFactory) NewDecoder() (Decoder, error) {
	d := &fakeDecoder{alignmentErr: f.alignmentErr}
	f.created = append(f.created, d)
	return d, nil
}

type runLengthGrouper struct{}

func (runLengthGrouper) GroupPhones(alignment []int32) ([]PhoneRun, error) {
	var runs []PhoneRun
	for _, id := range alignment {
		if n := len(runs); n > 0 && runs[n-1].Phone == id {
			runs[n-1].Count++
			continue
		}
		runs = append(runs, PhoneRun{Phone: id, Count: 1})
	}
	return runs, nil
}

// speechSegmenter returns the speech runs.
type speechSegmenter struct{}

func (speechSegmenter) Segment(phones []PhoneRun) ([]RawSegment, error) {
	var segments []RawSegment
	frame := 0
	for _, p := range phones {
		if p.Phone == speechID {
			segments = append(segments, RawSegment{StartFrame: frame, EndFrame: frame + p.Count - 1, Label: p.Phone})
		}
		frame += p.Count
	}
	return segments, nil
}

type recordingSink struct {
	events []model.SegmentEvent
	err    error
}

func (s *recordingSink) WriteSegment(evt model.SegmentEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, evt)
	return nil
}

type countingObserver struct {
	passes, failures, segments, resets int
}

func (o *countingObserver) PassCompleted(_ time.Duration) { o.passes++ }
func (o *countingObserver) PassFailed()                   { o.failures++ }
func (o *countingObserver) SegmentEmitted(model.Segment)  { o.segments++ }
func (o *countingObserver) DecoderReset()                 { o.resets++ }

// testOptions map one sample to one frame: 10 samples per chunk, 2 chunks per pass.
func testOptions(t *testing.T) Options {
	t.Helper()

	opts, err := NewOptions(Options{
		SampleRate:            100,
		FrameShift:            0.01,
		ChunkTime:             0.1,
		SegmentBufferLen:      20,
		MaxIntersegmentLength: 5,
	})
	require.NoError(t, err)
	require.Equal(t, 2, opts.ChunkCountPerPass(), "chunk count per pass")
	require.Equal(t, 10, opts.SamplesPerChunk(), "samples per chunk")

	return opts
}

// chunk converts a pattern into samples: 'x' is speech, any other character silence.
func chunk(pattern string) []float32 {
	samples := make([]float32, len(pattern))
	for i, c := range pattern {
		if c == 'x' {
			samples[i] = 1
		}
	}
	return samples
}
