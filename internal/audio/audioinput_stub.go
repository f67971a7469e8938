//go:build !portaudio

package audio

import (
	"context"
	"errors"
	"io"

	"github.com/go-audio/audio"
)

// ErrNoPortAudio is returned when the binary was built without the portaudio tag.
var ErrNoPortAudio = errors.New("audio input is not supported by this build, rebuild with -tags portaudio")

type Input struct {
	Device     string
	SampleRate int
	ChunkSize  int
}

func (o *Input) RecordAudio(ctx context.Context) (<-chan audio.Buffer, error) {
	return nil, ErrNoPortAudio
}

func PrintInputDevices(io.Writer) error {
	return ErrNoPortAudio
}
