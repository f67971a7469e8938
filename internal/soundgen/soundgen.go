// Package soundgen generates synthetic speech-like test recordings.
package soundgen

import (
	"math"
	"time"

	"github.com/go-audio/audio"

	vadaudio "github.com/mgoltzsche/online-vad/internal/audio"
)

// Part is a section of a generated recording.
// A part with zero amplitude is silence.
type Part struct {
	Frequency float64
	Amplitude float64
	Duration  time.Duration
}

func Tone(frequency float64, duration time.Duration) Part {
	return Part{Frequency: frequency, Amplitude: 0.5, Duration: duration}
}

func Silence(duration time.Duration) Part {
	return Part{Duration: duration}
}

type Generator struct {
	SampleRate int
}

// Buffer renders the parts as 16 bit mono PCM buffer.
func (g *Generator) Buffer(parts ...Part) *audio.IntBuffer {
	var data []int

	for _, p := range parts {
		n := int(math.Round(p.Duration.Seconds() * float64(g.SampleRate)))
		for i := 0; i < n; i++ {
			phase := p.Frequency * float64(i) / float64(g.SampleRate)

			data = append(data, int(math.Sin(2*math.Pi*phase)*p.Amplitude*32767))
		}
	}

	return &audio.IntBuffer{
		Format:         &audio.Format{SampleRate: g.SampleRate, NumChannels: 1},
		Data:           data,
		SourceBitDepth: 16,
	}
}

// Wave renders the parts as RIFF wave file.
func (g *Generator) Wave(parts ...Part) ([]byte, error) {
	return vadaudio.EncodeWave(g.Buffer(parts...))
}
