//go:build silero

package decoder

import (
	"fmt"

	"github.com/streamer45/silero-vad-go/speech"

	"github.com/mgoltzsche/online-vad/internal/vad"
)

// SileroAvailable reports whether the silero decoder is compiled in.
func SileroAvailable() bool { return true }

func newSileroDecoder(geometry FrameGeometry, cfg SileroConfig) (vad.Decoder, error) {
	d, err := NewSileroDecoder(geometry, cfg)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// SileroDecoder labels frames using the Silero VAD model.
// Every alignment request re-runs the model over all samples accepted so far,
// so the cost of a pass grows with the decoder's lifetime until it is reset.
type SileroDecoder struct {
	geometry FrameGeometry
	detector *speech.Detector
	samples  []float32
	frames   int
	finished bool
}

func NewSileroDecoder(geometry FrameGeometry, cfg SileroConfig) (*SileroDecoder, error) {
	if err := geometry.validate(); err != nil {
		return nil, err
	}

	detector, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            cfg.ModelPath,
		SampleRate:           geometry.SampleRate,
		Threshold:            float32(cfg.Threshold),
		MinSilenceDurationMs: cfg.MinSilenceDurationMs,
		SpeechPadMs:          cfg.SpeechPadMs,
	})
	if err != nil {
		return nil, fmt.Errorf("create silero vad: %w", err)
	}

	return &SileroDecoder{
		geometry: geometry,
		detector: detector,
	}, nil
}

func (d *SileroDecoder) AcceptWaveform(sampleRate int, samples []float32) error {
	if d.detector == nil {
		return errClosed
	}
	if d.finished {
		return errInputFinished
	}
	if sampleRate != d.geometry.SampleRate {
		return fmt.Errorf("sample rate %d does not match the decoder's sample rate %d", sampleRate, d.geometry.SampleRate)
	}

	d.samples = append(d.samples, samples...)

	return nil
}

func (d *SileroDecoder) Advance() error {
	if d.detector == nil {
		return errClosed
	}

	d.frames = d.geometry.NumFrames(len(d.samples))

	return nil
}

func (d *SileroDecoder) NumFramesReady() int {
	return d.frames
}

func (d *SileroDecoder) BestPathAlignment(partial bool) ([]int32, error) {
	if d.detector == nil {
		return nil, errClosed
	}

	if err := d.detector.Reset(); err != nil {
		return nil, fmt.Errorf("reset silero vad: %w", err)
	}

	segments, err := d.detector.Detect(d.samples)
	if err != nil {
		return nil, fmt.Errorf("detect speech: %w", err)
	}

	alignment := make([]int32, d.frames)
	for i := range alignment {
		alignment[i] = SilenceState
	}

	end := float64(len(d.samples)) / float64(d.geometry.SampleRate)
	for _, s := range segments {
		speechEnd := s.SpeechEndAt
		if speechEnd <= 0 {
			// Speech continues beyond the accepted samples.
			speechEnd = end
		}
		first := max(0, int(s.SpeechStartAt/d.geometry.FrameShift))
		last := min(d.frames, int(speechEnd/d.geometry.FrameShift))
		for i := first; i < last; i++ {
			alignment[i] = SpeechState
		}
	}

	return alignment, nil
}

func (d *SileroDecoder) FinishInput() error {
	d.finished = true
	return nil
}

func (d *SileroDecoder) Close() error {
	if d.detector == nil {
		return nil
	}

	err := d.detector.Destroy()
	d.detector = nil
	d.samples = nil
	if err != nil {
		return fmt.Errorf("destroy silero vad: %w", err)
	}

	return nil
}
