package audio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

// ReadWave decodes a complete 16 bit RIFF wave file.
func ReadWave(reader io.Reader) (*audio.IntBuffer, error) {
	b, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read wave data: %w", err)
	}

	decoder := wav.NewDecoder(bytes.NewReader(b))

	decoder.ReadInfo()
	if err := decoder.Err(); err != nil {
		return nil, fmt.Errorf("read wave file headers: %w", err)
	}

	if decoder.SampleBitDepth() != 16 {
		return nil, fmt.Errorf("wave data with unsupported bit depth of %d provided, expected 16", decoder.SampleBitDepth())
	}

	buffer, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read full pcm buffer: %w", err)
	}

	if buffer.SourceBitDepth == 0 {
		buffer.SourceBitDepth = int(decoder.SampleBitDepth())
	}

	return buffer, nil
}

// EncodeWave encodes the buffer as 16 bit RIFF wave file.
func EncodeWave(buffer audio.Buffer) ([]byte, error) {
	wavFile := &writerseeker.WriterSeeker{}
	f := buffer.PCMFormat()
	encoder := wav.NewEncoder(wavFile, f.SampleRate, 16, f.NumChannels, 1)

	if err := encoder.Write(buffer.AsIntBuffer()); err != nil {
		return nil, fmt.Errorf("encoder write buffer: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encoder close: %w", err)
	}

	riffWav, err := io.ReadAll(wavFile.Reader())
	if err != nil {
		return nil, fmt.Errorf("reading wav into memory: %w", err)
	}

	return riffWav, nil
}

// MonoSamples converts the buffer into mono float samples within [-1, 1].
// Multiple channels are averaged.
func MonoSamples(buffer audio.Buffer) []float32 {
	channels := 1
	if f := buffer.PCMFormat(); f != nil && f.NumChannels > 1 {
		channels = f.NumChannels
	}

	var data []float32

	switch b := buffer.(type) {
	case *audio.IntBuffer:
		bitDepth := b.SourceBitDepth
		if bitDepth == 0 {
			bitDepth = 16
		}
		scale := float32(int(1) << (bitDepth - 1))
		data = make([]float32, len(b.Data))
		for i, v := range b.Data {
			data[i] = float32(v) / scale
		}
	default:
		data = buffer.AsFloat32Buffer().Data
	}

	samples := make([]float32, len(data)/channels)
	for i := range samples {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += data[i*channels+c]
		}
		samples[i] = sum / float32(channels)
	}

	return samples
}

// Resample converts samples linearly between sample rates.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 || len(samples) == 0 {
		return samples
	}

	n := int(int64(len(samples)) * int64(toRate) / int64(fromRate))
	out := make([]float32, n)
	ratio := float64(fromRate) / float64(toRate)

	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j+1 >= len(samples) {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = samples[j]*(1-frac) + samples[j+1]*frac
	}

	return out
}

// Chunker splits a sample stream into chunks of a fixed size.
type Chunker struct {
	Size    int
	pending []float32
}

// Push appends samples and returns all chunks that became complete.
func (c *Chunker) Push(samples []float32) [][]float32 {
	c.pending = append(c.pending, samples...)

	var chunks [][]float32
	for len(c.pending) >= c.Size {
		chunk := make([]float32, c.Size)
		copy(chunk, c.pending)
		chunks = append(chunks, chunk)
		c.pending = c.pending[c.Size:]
	}

	return chunks
}

// Rest returns the incomplete remainder and clears it.
func (c *Chunker) Rest() []float32 {
	rest := c.pending
	c.pending = nil
	return rest
}

// Split splits samples into chunks of the given size, the last chunk may be shorter.
func Split(samples []float32, size int) [][]float32 {
	c := Chunker{Size: size}
	chunks := c.Push(samples)
	if rest := c.Rest(); len(rest) > 0 {
		chunks = append(chunks, rest)
	}
	return chunks
}
