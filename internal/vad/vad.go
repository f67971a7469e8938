package vad

import (
	"context"
	"log/slog"

	"github.com/go-audio/audio"

	vadaudio "github.com/mgoltzsche/online-vad/internal/audio"
	"github.com/mgoltzsche/online-vad/internal/model"
)

type Detector struct {
	Session *Session
	WavID   string
}

// DetectVoiceActivity streams the audio input data channel through the
// session and emits the finalized speech segments into the returned channel.
// The pending segment is flushed when the input channel is closed.
func (d *Detector) DetectVoiceActivity(ctx context.Context, input <-chan audio.Buffer) <-chan model.SegmentEvent {
	ch := make(chan model.SegmentEvent, 10)

	go func() {
		defer close(ch)

		chunker := &vadaudio.Chunker{Size: d.Session.opts.SamplesPerChunk()}

		emit := func(events []model.SegmentEvent) bool {
			for _, evt := range events {
				select {
				case ch <- evt:
				case <-ctx.Done():
					return false
				}
			}
			return true
		}

		for {
			var (
				buf audio.Buffer
				ok  bool
			)

			select {
			case buf, ok = <-input:
			case <-ctx.Done():
				ok = false
			}

			if !ok {
				break
			}

			if f := buf.PCMFormat(); f != nil && f.SampleRate != d.Session.opts.SampleRate {
				slog.Warn("dropping audio buffer with unexpected sample rate", "sampleRate", f.SampleRate, "expected", d.Session.opts.SampleRate)
				continue
			}

			for _, chunk := range chunker.Push(vadaudio.MonoSamples(buf)) {
				result, err := d.Session.ProcessChunk(chunk, d.WavID, true)
				if err != nil {
					slog.Error("voice activity detection failed", "wavId", d.WavID, "err", err)
					return
				}

				if !emit(result.Emitted) {
					return
				}
			}
		}

		result, err := d.Session.ProcessChunk(chunker.Rest(), d.WavID, false)
		if err != nil {
			slog.Error("voice activity detection failed", "wavId", d.WavID, "err", err)
			return
		}

		// The consumer drains the channel until it is closed.
		for _, evt := range result.Emitted {
			ch <- evt
		}
	}()

	return ch
}
