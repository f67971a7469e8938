package vad

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomChunk(rnd *rand.Rand) string {
	var b strings.Builder
	for i := 0; i < 2; i++ {
		block := "_____"
		if rnd.IntN(10) < 3 {
			block = "xxxxx"
		}
		b.WriteString(block)
	}
	return b.String()
}

func TestSessionProperties(t *testing.T) {
	for _, seed := range []uint64{1, 2, 3, 42} {
		opts, err := NewOptions(Options{
			SampleRate:            100,
			FrameShift:            0.01,
			ChunkTime:             0.1,
			SegmentBufferLen:      20,
			PadLength:             2,
			PostPadLength:         3,
			MaxIntersegmentLength: 5,
			NumFramesSkipped:      2,
			InitialFrameOffset:    6,
			TailFrameDeficit:      1,
		})
		require.NoError(t, err)

		testee := newTestSession(t, opts)
		rnd := rand.New(rand.NewPCG(seed, 7))
		chunks := 300

		offset := testee.State().GlobalFrameOffset
		decoders := len(testee.decoders.created)

		for i := 1; i <= chunks; i++ {
			recording := i < chunks
			emittedBefore := len(testee.sink.events)

			r := testee.process(t, randomChunk(rnd), recording)

			st := testee.State()
			require.GreaterOrEqualf(t, st.GlobalFrameOffset, offset, "seed %d chunk %d: global frame offset must not decrease", seed, i)
			if st.GlobalFrameOffset != offset {
				require.Greaterf(t, len(testee.decoders.created), decoders, "seed %d chunk %d: global frame offset changed without reset", seed, i)
			}
			offset = st.GlobalFrameOffset
			decoders = len(testee.decoders.created)

			if !recording {
				require.NotEmpty(t, r.Emitted, "end of recording emission")
				require.Equal(t, len(testee.sink.events), emittedBefore+len(r.Emitted), "emissions written")
				require.Equal(t, st.SegmentSeq, r.Emitted[len(r.Emitted)-1].Seq, "flushed segment is the last one")
			}
		}

		events := testee.sink.events
		require.Greaterf(t, len(events), 2, "seed %d: emitted segments", seed)

		for i, evt := range events {
			require.Equalf(t, int64(i+1), evt.Seq, "seed %d: sequence", seed)
			require.LessOrEqualf(t, evt.Start, evt.End, "seed %d segment %d: start <= end", seed, i)
			if i > 0 {
				require.GreaterOrEqualf(t, evt.Start, events[i-1].Start, "seed %d segment %d: start must not decrease", seed, i)
			}
		}
	}
}

func TestMergeLaw(t *testing.T) {
	testee := Stitcher{FrameShift: 0.01, PadLength: 1, PostPadLength: 1, MaxIntersegmentLength: 8}

	// Gap 12 is left out: its padded gap equals the tolerance exactly.
	for _, gap := range []int{0, 1, 3, 7, 11, 13, 16, 19} {
		st, pass := testee.Stitch(State{}, "utt", []RawSegment{
			{StartFrame: 10, EndFrame: 20},
			{StartFrame: 21 + gap, EndFrame: 40 + gap},
		})

		// The padded gap shrinks by PadLength+PostPadLength on both sides.
		paddedGap := float64(gap) - 4
		if paddedGap < 8 {
			require.Emptyf(t, pass.Emitted, "gap %d: emissions", gap)
			_, evt := testee.Flush(st, "utt")
			require.InDeltaf(t, 0.08, evt.Start, delta, "gap %d: merged start", gap)
			require.InDeltaf(t, float64(41+gap)*0.01, evt.End, delta, "gap %d: merged end", gap)
		} else {
			require.Lenf(t, pass.Emitted, 1, "gap %d: emissions", gap)
		}
	}
}
