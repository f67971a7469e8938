package vad

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameOffsetDelta(t *testing.T) {
	opts, err := NewOptions(Options{
		SampleRate:       16000,
		FrameShift:       0.01,
		FrameOverlap:     0.015,
		ChunkTime:        0.1,
		SegmentBufferLen: 100,
		TailFrameDeficit: 7,
	})
	require.NoError(t, err)

	testee, err := newResetManager(opts, &fakeDecoderFactory{}, slog.Default())
	require.NoError(t, err)

	for _, c := range []struct {
		name             string
		oldFramesDecoded int
		prevMemoryLen    int
		expected         int
	}{
		{"first reset", 208, 0, 215},
		{"previous carry-over window", 208, 17600, 115},
		{"never negative", 10, 17600, 0},
	} {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.expected, testee.frameOffsetDelta(c.oldFramesDecoded, c.prevMemoryLen))
		})
	}
}

func TestResetPrimesDecoder(t *testing.T) {
	opts := testOptions(t)
	decoders := &fakeDecoderFactory{}

	testee, err := newResetManager(opts, decoders, slog.Default())
	require.NoError(t, err)

	st := State{GlobalFrameOffset: 3, OldFramesDecoded: 30, NewFramesDecoded: 50}
	st.Audio.Append(chunk("xxxxxxxxxx_____xxxxx"))
	st.Audio.Append(chunk("__________"))

	err = testee.Reset(&st)
	require.NoError(t, err)

	require.Len(t, decoders.created, 2, "decoders created")
	require.True(t, decoders.created[0].closed, "old decoder closed")
	require.Same(t, decoders.created[1], testee.Decoder(), "current decoder")
	require.Equal(t, chunk("_____xxxxx__________"), decoders.created[1].samples, "primed samples")
	require.Equal(t, chunk("_____xxxxx__________"), st.WaveMemory, "wave memory")
	require.Equal(t, 20, st.Audio.Len(), "audio buffer")
	require.Equal(t, 2, st.ChunkCount, "chunk count")
	require.Equal(t, 33, st.GlobalFrameOffset, "global frame offset")
	require.Equal(t, 20, st.OldFramesDecoded, "old frames decoded")
	require.Equal(t, 20, st.NewFramesDecoded, "new frames decoded")
}
