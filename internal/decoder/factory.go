// Package decoder provides the frame-level speech decoders a vad session drives.
package decoder

import (
	"errors"
	"fmt"

	"github.com/mgoltzsche/online-vad/internal/vad"
)

const (
	EngineEnergy = "energy"
	EngineSilero = "silero"
)

// ErrSileroUnavailable is returned when the binary was built without the silero tag.
var ErrSileroUnavailable = errors.New("silero decoder is not compiled in, rebuild with -tags silero")

// SileroConfig configures the silero decoder.
type SileroConfig struct {
	ModelPath            string
	Threshold            float64
	MinSilenceDurationMs int
	SpeechPadMs          int
}

// Factory creates decoders of the configured engine.
type Factory struct {
	Engine          string
	Geometry        FrameGeometry
	EnergyThreshold float64
	SpeechOffset    float64
	Silero          SileroConfig
}

var _ vad.DecoderFactory = &Factory{}

func (f *Factory) NewDecoder() (vad.Decoder, error) {
	switch f.Engine {
	case EngineEnergy, "":
		d, err := NewEnergyDecoder(f.Geometry, f.EnergyThreshold, f.SpeechOffset)
		if err != nil {
			return nil, err
		}
		return d, nil
	case EngineSilero:
		return newSileroDecoder(f.Geometry, f.Silero)
	default:
		return nil, fmt.Errorf("unsupported decoder engine %q, supported engines are %s and %s", f.Engine, EngineEnergy, EngineSilero)
	}
}
