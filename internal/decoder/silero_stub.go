//go:build !silero

package decoder

import "github.com/mgoltzsche/online-vad/internal/vad"

func SileroAvailable() bool { return false }

func newSileroDecoder(FrameGeometry, SileroConfig) (vad.Decoder, error) {
	return nil, ErrSileroUnavailable
}
