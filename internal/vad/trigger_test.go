package vad

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPassTrigger(t *testing.T) {
	for _, c := range []struct {
		name       string
		skipped    int
		chunkCount int
		expected   bool
	}{
		{"no chunk", 10, 0, false},
		{"within pass", 10, 1, false},
		{"pass boundary", 10, 2, true},
		{"after pass boundary", 10, 3, false},
		{"second pass boundary", 10, 4, true},
		{"all frames skipped", 20, 2, false},
		{"frames beyond skipped", 20, 4, true},
	} {
		t.Run(c.name, func(t *testing.T) {
			testee := PassTrigger{
				ChunkTime:         0.1,
				FrameShift:        0.01,
				NumFramesSkipped:  c.skipped,
				ChunkCountPerPass: 2,
			}

			require.Equal(t, c.expected, testee.ShouldRun(c.chunkCount))
		})
	}
}

func TestPassTriggerDecodableFrames(t *testing.T) {
	testee := PassTrigger{ChunkTime: 0.02, FrameShift: 0.01, NumFramesSkipped: 10, ChunkCountPerPass: 1}

	require.Equal(t, 48, testee.DecodableFrames(29), "29*0.02/0.01 must not round down to 57")
	require.Equal(t, -10, testee.DecodableFrames(0))
}
