//go:build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-audio/audio"
	"github.com/gordonklaus/portaudio"
)

type Input struct {
	Device     string
	SampleRate int
	// ChunkSize is the number of samples per emitted buffer at SampleRate.
	ChunkSize int
}

// RecordAudio opens an audio input device and emits mono chunks of
// ChunkSize samples into the returned channel until the context is done.
func (o *Input) RecordAudio(ctx context.Context) (<-chan audio.Buffer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	device, err := inputDevice(o.Device)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	deviceRate := int(device.DefaultSampleRate)
	in := make([]int16, o.ChunkSize*deviceRate/o.SampleRate)
	audioStream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: 1,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      device.DefaultSampleRate,
		FramesPerBuffer: len(in),
	}, &in)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("opening audio input stream: %w", err)
	}

	err = audioStream.Start()
	if err != nil {
		audioStream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("starting audio input stream: %w", err)
	}

	ch := make(chan audio.Buffer, 5)
	chunker := &Chunker{Size: o.ChunkSize}

	go func() {
		defer close(ch)
		defer portaudio.Terminate()

		for {
			select {
			case <-ctx.Done():
				if err := audioStream.Stop(); err != nil {
					slog.Warn("failed to stop input audio stream", "err", err)
				}
				if err := audioStream.Close(); err != nil {
					slog.Warn("failed to close input audio stream", "err", err)
				}
				return
			default:
				if err := audioStream.Read(); err != nil {
					if err == portaudio.InputOverflowed {
						slog.Warn("audio input overflowed - dropped samples")
					} else {
						slog.Warn("failed to read audio stream", "err", err)
					}
					continue
				}

				samples := make([]float32, len(in))
				for i, v := range in {
					samples[i] = float32(v) / 32768
				}

				for _, chunk := range chunker.Push(Resample(samples, deviceRate, o.SampleRate)) {
					ch <- &audio.Float32Buffer{
						Format:         &audio.Format{SampleRate: o.SampleRate, NumChannels: 1},
						Data:           chunk,
						SourceBitDepth: 16,
					}
				}
			}
		}
	}()

	return ch, nil
}
