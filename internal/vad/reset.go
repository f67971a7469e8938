package vad

import (
	"fmt"
	"log/slog"
	"math"
)

// ResetManager owns the current decoder instance. No other component may
// hold on to a decoder across a reset.
type ResetManager struct {
	opts    Options
	factory DecoderFactory
	decoder Decoder
	logger  *slog.Logger
}

func newResetManager(opts Options, factory DecoderFactory, logger *slog.Logger) (*ResetManager, error) {
	decoder, err := factory.NewDecoder()
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}

	return &ResetManager{
		opts:    opts,
		factory: factory,
		decoder: decoder,
		logger:  logger,
	}, nil
}

// Decoder returns the current decoder instance.
func (m *ResetManager) Decoder() Decoder {
	return m.decoder
}

// Reset replaces the decoder with a new instance that is primed with the
// carry-over window of the buffered audio and rebases the state's global
// frame offset so that segment timestamps stay continuous.
// The state is only modified when the new decoder could be set up.
func (m *ResetManager) Reset(st *State) error {
	memory := st.Audio.SnapshotTail(m.opts.CarryOverSamples())

	decoder, err := m.factory.NewDecoder()
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}

	err = decoder.AcceptWaveform(m.opts.SampleRate, memory)
	if err == nil {
		err = decoder.Advance()
	}
	if err != nil {
		if closeErr := decoder.Close(); closeErr != nil {
			m.logger.Warn("failed to close decoder", "err", closeErr)
		}
		return fmt.Errorf("prime decoder: %w", err)
	}

	old := m.decoder
	m.decoder = decoder

	if err := old.FinishInput(); err != nil {
		m.logger.Warn("failed to finish decoder input", "err", err)
	}
	if err := old.Close(); err != nil {
		m.logger.Warn("failed to close decoder", "err", err)
	}

	st.GlobalFrameOffset += m.frameOffsetDelta(st.OldFramesDecoded, len(st.WaveMemory))
	st.WaveMemory = memory
	st.ChunkCount = m.opts.ChunkCountPerPass()
	st.Audio.Replace(memory)
	st.NewFramesDecoded = decoder.NumFramesReady()
	st.OldFramesDecoded = st.NewFramesDecoded

	return nil
}

// frameOffsetDelta returns the frames the global offset advances by on a
// reset. The previous carry-over window minus one chunk was decoded twice and
// is therefore subtracted while the frames the decoder lags behind are added.
// The delta is never negative.
func (m *ResetManager) frameOffsetDelta(oldFramesDecoded, prevMemoryLen int) int {
	memoryTime := float64(prevMemoryLen) / float64(m.opts.SampleRate)
	memoryFrames := max(0, math.Round((memoryTime-m.opts.ChunkTime)/m.opts.FrameShift))
	delta := float64(oldFramesDecoded) - memoryFrames + float64(m.opts.TailFrameDeficit)
	return max(0, int(delta))
}

// Close releases the current decoder.
func (m *ResetManager) Close() error {
	if err := m.decoder.FinishInput(); err != nil {
		m.logger.Warn("failed to finish decoder input", "err", err)
	}
	return m.decoder.Close()
}
