package decoder

import (
	"errors"
	"fmt"
	"math"
)

var (
	errClosed        = errors.New("decoder is closed")
	errInputFinished = errors.New("decoder input already finished")
)

// EnergyDecoder labels frames as speech or silence by their log energy.
// It uses hysteresis: a frame starts speech when its energy reaches
// EnergyThreshold and speech continues while the energy stays above
// EnergyThreshold - SpeechOffset.
type EnergyDecoder struct {
	geometry        FrameGeometry
	energyThreshold float64
	speechOffset    float64

	samples  []float32
	consumed int
	labels   []int32
	inSpeech bool
	finished bool
	closed   bool
}

// NewEnergyDecoder creates a decoder. The thresholds are given in dBFS.
func NewEnergyDecoder(geometry FrameGeometry, energyThreshold, speechOffset float64) (*EnergyDecoder, error) {
	if err := geometry.validate(); err != nil {
		return nil, err
	}

	return &EnergyDecoder{
		geometry:        geometry,
		energyThreshold: energyThreshold,
		speechOffset:    speechOffset,
	}, nil
}

func (d *EnergyDecoder) AcceptWaveform(sampleRate int, samples []float32) error {
	switch {
	case d.closed:
		return errClosed
	case d.finished:
		return errInputFinished
	case sampleRate != d.geometry.SampleRate:
		return fmt.Errorf("sample rate %d does not match the decoder's sample rate %d", sampleRate, d.geometry.SampleRate)
	}

	d.samples = append(d.samples, samples...)

	return nil
}

func (d *EnergyDecoder) Advance() error {
	if d.closed {
		return errClosed
	}

	hop := d.geometry.Hop()
	window := d.geometry.Window()
	ready := d.geometry.NumFrames(d.consumed + len(d.samples))

	for frame := len(d.labels); frame < ready; frame++ {
		start := frame*hop - d.consumed
		d.labels = append(d.labels, d.label(d.samples[start:start+window]))
	}

	// Drop samples no future frame needs.
	if drop := len(d.labels)*hop - d.consumed; drop > 0 {
		drop = min(drop, len(d.samples))
		d.samples = d.samples[drop:]
		d.consumed += drop
	}

	return nil
}

func (d *EnergyDecoder) label(frame []float32) int32 {
	energy := logEnergy(frame)

	threshold := d.energyThreshold
	if d.inSpeech {
		threshold -= d.speechOffset
	}

	d.inSpeech = energy >= threshold

	if d.inSpeech {
		return SpeechState
	}

	return SilenceState
}

func (d *EnergyDecoder) NumFramesReady() int {
	return len(d.labels)
}

func (d *EnergyDecoder) BestPathAlignment(partial bool) ([]int32, error) {
	if d.closed {
		return nil, errClosed
	}
	if !partial && !d.finished {
		return nil, errors.New("final alignment requested before the input was finished")
	}

	alignment := make([]int32, len(d.labels))
	copy(alignment, d.labels)

	return alignment, nil
}

// FinishInput labels the remaining samples as a last, shorter frame.
func (d *EnergyDecoder) FinishInput() error {
	if d.closed {
		return errClosed
	}
	if d.finished {
		return nil
	}

	if err := d.Advance(); err != nil {
		return err
	}

	if len(d.samples) > 0 && d.consumed+len(d.samples) > len(d.labels)*d.geometry.Hop() {
		start := len(d.labels)*d.geometry.Hop() - d.consumed
		d.labels = append(d.labels, d.label(d.samples[max(0, start):]))
	}

	d.finished = true

	return nil
}

func (d *EnergyDecoder) Close() error {
	d.closed = true
	d.samples = nil
	d.labels = nil
	return nil
}

// logEnergy returns the frame's mean power in dBFS.
func logEnergy(frame []float32) float64 {
	if len(frame) == 0 {
		return math.Inf(-1)
	}

	var sum float64
	for _, v := range frame {
		sum += float64(v) * float64(v)
	}

	return 10 * math.Log10(sum/float64(len(frame))+1e-10)
}
