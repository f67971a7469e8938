package vad

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mgoltzsche/online-vad/internal/model"
)

type testSession struct {
	*Session
	decoders *fakeDecoderFactory
	sink     *recordingSink
	observer *countingObserver
}

func newTestSession(t *testing.T, opts Options) *testSession {
	t.Helper()

	decoders := &fakeDecoderFactory{}
	sink := &recordingSink{}
	observer := &countingObserver{}

	s, err := NewSession(SessionConfig{
		Options:   opts,
		Decoders:  decoders,
		Phones:    runLengthGrouper{},
		Segmenter: speechSegmenter{},
		Sink:      sink,
		Observer:  observer,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return &testSession{Session: s, decoders: decoders, sink: sink, observer: observer}
}

func (s *testSession) process(t *testing.T, pattern string, recording bool) Result {
	t.Helper()

	result, err := s.ProcessChunk(chunk(pattern), "utt", recording)
	require.NoError(t, err)

	return result
}

func TestSession(t *testing.T) {
	testee := newTestSession(t, testOptions(t))

	r := testee.process(t, "__________", true)
	require.True(t, r.Continuing, "chunk 1")
	require.Empty(t, r.Segments, "chunk 1 segments")

	r = testee.process(t, "_____xxxxx", true)
	require.True(t, r.Continuing, "chunk 2")
	require.Len(t, r.Segments, 2, "chunk 2 trace")
	requireSegment(t, model.Segment{Start: 0.15, End: 0.20}, r.Segments[1], "chunk 2 open tail")
	require.Empty(t, testee.sink.events, "emitted after chunk 2")

	testee.process(t, "__________", true)
	r = testee.process(t, "__________", true)
	require.True(t, r.Continuing, "silent pass")
	require.Equal(t, 40, testee.State().OldFramesDecoded, "frames decoded")

	firstDecoder := testee.Decoder()
	testee.process(t, "__________", true)
	r = testee.process(t, "xxxxxx____", true)
	require.False(t, r.Continuing, "chunk 6")
	require.Len(t, r.Emitted, 1, "chunk 6 emissions")
	require.Equal(t, "utt_1", r.Emitted[0].UtteranceID())
	requireSegment(t, model.Segment{Start: 0.15, End: 0.20}, r.Emitted[0].Segment, "first segment")

	st := testee.State()
	require.Equal(t, 40, st.GlobalFrameOffset, "global frame offset after reset")
	require.Equal(t, 2, st.ChunkCount, "chunk count after reset")
	require.Len(t, st.WaveMemory, 20, "wave memory")
	require.Equal(t, 20, st.OldFramesDecoded, "frames decoded by the primed decoder")
	require.Equal(t, 20, st.Audio.Len(), "audio buffer after reset")
	require.NotSame(t, firstDecoder, testee.Decoder(), "decoder should be replaced")
	require.True(t, firstDecoder.(*fakeDecoder).finished, "old decoder input finished")
	require.True(t, firstDecoder.(*fakeDecoder).closed, "old decoder closed")

	r = testee.process(t, "xxxxx_____", true)
	require.False(t, r.Continuing, "chunk 7 without pass keeps the previous decision")
	r = testee.process(t, "__________", false)
	require.True(t, r.Continuing, "chunk 8")
	require.Len(t, r.Emitted, 1, "chunk 8 emissions")
	require.Equal(t, "utt_2", r.Emitted[0].UtteranceID())
	requireSegment(t, model.Segment{Start: 0.50, End: 0.65}, r.Emitted[0].Segment, "merged across the reset")

	require.Equal(t, []model.SegmentEvent{
		{WavID: "utt", Seq: 1, Segment: testee.sink.events[0].Segment},
		{WavID: "utt", Seq: 2, Segment: testee.sink.events[1].Segment},
	}, testee.sink.events, "sink")
	require.Len(t, testee.decoders.created, 2, "decoders created")
	require.Equal(t, 4, testee.observer.passes, "passes observed")
	require.Equal(t, 2, testee.observer.segments, "segments observed")
	require.Equal(t, 1, testee.observer.resets, "resets observed")
}

func TestSessionEndOfRecordingEmitsEmptySegment(t *testing.T) {
	testee := newTestSession(t, testOptions(t))

	r := testee.process(t, "__________", false)
	require.Len(t, r.Emitted, 1, "emissions")
	require.Equal(t, "utt_1", r.Emitted[0].UtteranceID())
	require.Zero(t, r.Emitted[0].Duration(), "duration")
	require.Len(t, testee.sink.events, 1, "sink")
}

func TestSessionNoResetAtEndOfRecording(t *testing.T) {
	testee := newTestSession(t, testOptions(t))

	testee.process(t, "_____xxxxx", true)
	testee.process(t, "__________", true)
	testee.process(t, "__________", true)
	r := testee.process(t, "xxxxx_____", false)

	require.Len(t, r.Emitted, 2, "emissions")
	requireSegment(t, model.Segment{Start: 0.05, End: 0.10}, r.Emitted[0].Segment, "first segment")
	requireSegment(t, model.Segment{Start: 0.30, End: 0.35}, r.Emitted[1].Segment, "flushed segment")
	require.Len(t, testee.decoders.created, 1, "decoders created")
	require.Zero(t, testee.State().GlobalFrameOffset, "global frame offset")
}

func TestSessionCollaboratorFailureFailsOpen(t *testing.T) {
	testee := newTestSession(t, testOptions(t))
	testee.decoders.created[0].alignmentErr = errors.New("fake alignment error")

	testee.process(t, "__________", true)
	r := testee.process(t, "xxxxxxxxxx", true)
	require.True(t, r.Continuing, "continuing")
	require.Empty(t, r.Emitted, "emissions")

	st := testee.State()
	require.Zero(t, st.OldFramesDecoded, "frames decoded")
	require.Zero(t, st.Pending, "pending segment")
	require.Equal(t, 1, testee.observer.failures, "failures observed")

	_, err := testee.Process(chunk("__________"), "utt", true)
	require.NoError(t, err, "no pass")
	_, err = testee.Process(chunk("__________"), "utt", true)
	require.Error(t, err, "failing pass")
	require.False(t, IsFatal(err), "fatal")

	var vadErr *Error
	require.True(t, errors.As(err, &vadErr), "vad error")
	require.Equal(t, KindCollaborator, vadErr.Kind)
}

func TestSessionCollaboratorFailureAtEndOfRecordingFlushes(t *testing.T) {
	for _, c := range []struct {
		name string
		fail func(*fakeDecoder)
	}{
		{"alignment", func(d *fakeDecoder) { d.alignmentErr = errors.New("fake alignment error") }},
		{"accept waveform", func(d *fakeDecoder) { d.closed = true }},
	} {
		t.Run(c.name, func(t *testing.T) {
			testee := newTestSession(t, testOptions(t))

			testee.process(t, "__________", true)
			testee.process(t, "_____xxxxx", true)
			testee.process(t, "__________", true)
			c.fail(testee.decoders.created[0])

			r, err := testee.Process(chunk("__________"), "utt", false)
			require.Error(t, err, "decoder failure")
			require.False(t, IsFatal(err), "fatal")
			require.True(t, r.Continuing, "continuing")
			require.Len(t, r.Emitted, 1, "emissions")
			require.Equal(t, "utt_1", r.Emitted[0].UtteranceID())
			requireSegment(t, model.Segment{Start: 0.15, End: 0.20}, r.Emitted[0].Segment, "flushed segment")
			require.Equal(t, r.Emitted, testee.sink.events, "sink")
			require.Equal(t, int64(1), testee.State().SegmentSeq, "segment sequence")
		})
	}
}

func TestSessionCollaboratorFailureAtEndOfRecordingFailsOpen(t *testing.T) {
	testee := newTestSession(t, testOptions(t))

	testee.process(t, "__________", true)
	testee.process(t, "_____xxxxx", true)
	testee.process(t, "__________", true)
	testee.decoders.created[0].alignmentErr = errors.New("fake alignment error")

	r := testee.process(t, "__________", false)
	require.True(t, r.Continuing, "continuing")
	require.Len(t, r.Emitted, 1, "emissions")
	requireSegment(t, model.Segment{Start: 0.15, End: 0.20}, r.Emitted[0].Segment, "flushed segment")
	require.Len(t, testee.sink.events, 1, "sink")
	require.Equal(t, 1, testee.observer.failures, "failures observed")
}

func TestSessionSinkFailureAfterCollaboratorFailureIsFatal(t *testing.T) {
	testee := newTestSession(t, testOptions(t))

	testee.process(t, "__________", true)
	testee.process(t, "_____xxxxx", true)
	testee.process(t, "__________", true)
	testee.decoders.created[0].alignmentErr = errors.New("fake alignment error")
	testee.sink.err = errors.New("disk full")

	r, err := testee.ProcessChunk(chunk("__________"), "utt", false)
	require.Error(t, err)
	require.True(t, IsFatal(err), "fatal")
	require.Empty(t, r.Emitted, "emissions")
	requireSegment(t, model.Segment{Start: 0.15, End: 0.20}, testee.State().Pending, "pending segment")
}

func TestSessionSinkFailureIsFatal(t *testing.T) {
	testee := newTestSession(t, testOptions(t))

	testee.process(t, "__________", true)
	testee.process(t, "_____xxxxx", true)
	testee.process(t, "__________", true)

	testee.sink.err = errors.New("disk full")
	decoder := testee.Decoder()

	_, err := testee.ProcessChunk(chunk("xxxxxx____"), "utt", true)
	require.Error(t, err)
	require.True(t, IsFatal(err), "fatal")
	require.ErrorContains(t, err, "utt_1")

	st := testee.State()
	require.Zero(t, st.SegmentSeq, "segment sequence")
	requireSegment(t, model.Segment{Start: 0.15, End: 0.20}, st.Pending, "pending segment")
	require.Same(t, decoder, testee.Decoder(), "decoder")
}

func TestSessionReinitiate(t *testing.T) {
	testee := newTestSession(t, testOptions(t))

	for _, c := range []string{"__________", "_____xxxxx", "__________", "__________", "__________", "xxxxxx____", "xxxxx_____"} {
		testee.process(t, c, true)
	}

	before := testee.State()
	decoder := testee.Decoder()
	require.NotZero(t, before.GlobalFrameOffset, "global frame offset")
	require.NotZero(t, before.Pending, "pending segment")

	testee.Reinitiate()
	once := testee.State()
	testee.Reinitiate()
	twice := testee.State()

	require.Equal(t, once, twice, "idempotence")
	require.Zero(t, once.ChunkCount, "chunk count")
	require.Zero(t, once.Pending, "pending segment")
	require.True(t, once.Continuing, "continuing")
	require.Equal(t, before.GlobalFrameOffset, once.GlobalFrameOffset, "global frame offset")
	require.Equal(t, before.SegmentSeq, once.SegmentSeq, "segment sequence")
	require.Same(t, decoder, testee.Decoder(), "decoder")
}

func TestNewSessionRequiresCollaborators(t *testing.T) {
	_, err := NewSession(SessionConfig{
		Options:   testOptions(t),
		Decoders:  &fakeDecoderFactory{},
		Phones:    runLengthGrouper{},
		Segmenter: speechSegmenter{},
	})
	require.Error(t, err)
}
