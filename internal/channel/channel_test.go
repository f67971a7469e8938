package channel

import (
	"context"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/mgoltzsche/online-vad/internal/model"
	"github.com/mgoltzsche/online-vad/internal/pipeline"
	"github.com/mgoltzsche/online-vad/internal/soundgen"
	"github.com/mgoltzsche/online-vad/internal/vad"
	"github.com/mgoltzsche/online-vad/pkg/config"
)

func newTestChannels(t *testing.T) (*Channels, prometheus.Gauge) {
	t.Helper()
	sessions, err := pipeline.NewSessionFactory(config.Defaults(), vad.SinkFunc(func(model.SegmentEvent) error { return nil }), nil)
	require.NoError(t, err)
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_active_sessions"})
	return NewChannels(sessions, gauge), gauge
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, g.Write(m))
	return m.GetGauge().GetValue()
}

func TestChannel(t *testing.T) {
	channels, gauge := newTestChannels(t)
	defer channels.Close()

	testee, err := channels.GetOrCreate("rec")
	require.NoError(t, err)
	require.Equal(t, "rec", testee.ID())
	require.Equal(t, 1.0, gaugeValue(t, gauge), "active after create")

	same, err := channels.GetOrCreate("rec")
	require.NoError(t, err)
	require.Same(t, testee, same, "existing channel")
	require.Equal(t, 1.0, gaugeValue(t, gauge), "active after get")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := testee.Subscribe(ctx)

	gen := &soundgen.Generator{SampleRate: 16000}
	// Odd part sizes so that samples remain in the chunker.
	result, err := testee.Process(gen.Buffer(soundgen.Silence(time.Second), soundgen.Tone(440, 1503*time.Millisecond)), false)
	require.NoError(t, err)
	emitted := result.Emitted

	result, err = testee.Process(gen.Buffer(soundgen.Silence(1501*time.Millisecond)), false)
	require.NoError(t, err)
	emitted = append(emitted, result.Emitted...)

	result, err = testee.End()
	require.NoError(t, err)
	emitted = append(emitted, result.Emitted...)

	require.Len(t, emitted, 1)
	require.Equal(t, "rec_1", emitted[0].UtteranceID())
	require.InDelta(t, 1.0, emitted[0].Start, 0.1, "start")

	select {
	case evt := <-sub.ResultChan():
		require.Equal(t, emitted[0], evt, "published event")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the published segment")
	}

	require.NoError(t, channels.Remove(testee))
	require.Equal(t, 0.0, gaugeValue(t, gauge), "active after remove")

	_, ok := channels.Get("rec")
	require.False(t, ok, "removed channel")

	_, err = testee.Process(gen.Buffer(soundgen.Silence(time.Second)), false)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, testee.Reinitiate(), ErrClosed)

	_, open := <-sub.ResultChan()
	require.False(t, open, "subscription closed")
}

func TestChannelRejectsSampleRate(t *testing.T) {
	channels, _ := newTestChannels(t)
	defer channels.Close()

	testee, err := channels.GetOrCreate("rec")
	require.NoError(t, err)

	buf := &audio.IntBuffer{Format: &audio.Format{SampleRate: 8000, NumChannels: 1}, Data: make([]int, 800)}
	_, err = testee.Process(buf, false)
	require.Error(t, err)
}

func TestChannelsClose(t *testing.T) {
	channels, gauge := newTestChannels(t)

	a, err := channels.GetOrCreate("a")
	require.NoError(t, err)
	_, err = channels.GetOrCreate("b")
	require.NoError(t, err)
	require.Equal(t, 2.0, gaugeValue(t, gauge))

	require.NoError(t, channels.Close())
	require.Equal(t, 0.0, gaugeValue(t, gauge))

	_, err = a.End()
	require.ErrorIs(t, err, ErrClosed)
}
