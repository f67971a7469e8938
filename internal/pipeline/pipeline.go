// Package pipeline wires VAD sessions from the configuration.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/mgoltzsche/online-vad/internal/audio"
	"github.com/mgoltzsche/online-vad/internal/decoder"
	"github.com/mgoltzsche/online-vad/internal/model"
	"github.com/mgoltzsche/online-vad/internal/segmenter"
	"github.com/mgoltzsche/online-vad/internal/vad"
	"github.com/mgoltzsche/online-vad/pkg/config"
)

// SessionFactory creates sessions sharing the same options, sink and observer.
type SessionFactory struct {
	options   vad.Options
	decoders  vad.DecoderFactory
	phones    vad.PhoneGrouper
	segmenter vad.Segmenter
	sink      vad.Sink
	observer  vad.Observer
	logger    *slog.Logger
}

func NewSessionFactory(cfg config.Configuration, sink vad.Sink, observer vad.Observer) (*SessionFactory, error) {
	opts, err := vad.NewOptions(vad.Options{
		SampleRate:            cfg.SampleRate,
		FrameShift:            cfg.FrameShift,
		FrameOverlap:          cfg.FrameOverlap,
		ChunkTime:             cfg.ChunkTime,
		EnergyThreshold:       cfg.Decoder.EnergyThreshold,
		SpeechOffset:          cfg.Decoder.SpeechOffset,
		PadLength:             cfg.PadLength,
		PostPadLength:         cfg.PostPadLength,
		MaxIntersegmentLength: cfg.Segmentation.MaxIntersegmentLength,
		NumFramesSkipped:      cfg.NumFramesSkipped,
		SegmentBufferLen:      cfg.SegmentBufferLen,
		InitialFrameOffset:    cfg.InitialFrameOffset,
		TailFrameDeficit:      cfg.TailFrameDeficit,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Decoder.Engine == decoder.EngineSilero && !decoder.SileroAvailable() {
		return nil, fmt.Errorf("decoder engine %s: %w", cfg.Decoder.Engine, decoder.ErrSileroUnavailable)
	}

	return &SessionFactory{
		options: opts,
		decoders: &decoder.Factory{
			Engine: cfg.Decoder.Engine,
			Geometry: decoder.FrameGeometry{
				SampleRate:   opts.SampleRate,
				FrameShift:   opts.FrameShift,
				FrameOverlap: opts.FrameOverlap,
			},
			EnergyThreshold: opts.EnergyThreshold,
			SpeechOffset:    opts.SpeechOffset,
			Silero: decoder.SileroConfig{
				ModelPath:            cfg.Decoder.ModelPath,
				Threshold:            cfg.Decoder.Threshold,
				MinSilenceDurationMs: cfg.Decoder.MinSilenceDurationMs,
				SpeechPadMs:          cfg.Decoder.SpeechPadMs,
			},
		},
		phones: &segmenter.TransitionModel{},
		segmenter: &segmenter.Segmenter{
			SilencePhones:    cfg.Segmentation.SilencePhones,
			MinSegmentLength: cfg.Segmentation.MinSegmentLength,
			MergeLabels:      cfg.Segmentation.MergeLabels,
			MergeDstLabel:    cfg.Segmentation.MergeDstLabel,
			MaxMergeGap:      cfg.Segmentation.MaxIntersegmentLength,
		},
		sink:     sink,
		observer: observer,
		logger:   slog.Default(),
	}, nil
}

func (f *SessionFactory) Options() vad.Options {
	return f.options
}

// NewSession creates a session that emits into the factory's sink and the given additional sinks.
func (f *SessionFactory) NewSession(name string, sinks ...vad.Sink) (*vad.Session, error) {
	if f.sink != nil {
		sinks = append([]vad.Sink{f.sink}, sinks...)
	}

	var sink vad.Sink
	switch len(sinks) {
	case 0:
	case 1:
		sink = sinks[0]
	default:
		sink = vad.MultiSink(sinks...)
	}

	s, err := vad.NewSession(vad.SessionConfig{
		Options:   f.options,
		Decoders:  f.decoders,
		Phones:    f.phones,
		Segmenter: f.segmenter,
		Sink:      sink,
		Observer:  f.observer,
		Logger:    f.logger.With("session", name),
	})
	if err != nil {
		return nil, fmt.Errorf("create session %s: %w", name, err)
	}

	return s, nil
}

// ProcessWave streams a wave file through the session chunk by chunk.
// The last chunk ends the recording.
func ProcessWave(ctx context.Context, s *vad.Session, opts vad.Options, wavID string, reader io.Reader) ([]model.SegmentEvent, error) {
	buf, err := audio.ReadWave(reader)
	if err != nil {
		return nil, err
	}

	if sampleRate := buf.PCMFormat().SampleRate; sampleRate != opts.SampleRate {
		return nil, fmt.Errorf("wave %s has sample rate %d but %d is required", wavID, sampleRate, opts.SampleRate)
	}

	chunks := audio.Split(audio.MonoSamples(buf), opts.SamplesPerChunk())
	if len(chunks) == 0 {
		chunks = [][]float32{{}}
	}

	var segments []model.SegmentEvent

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return segments, err
		}

		result, err := s.ProcessChunk(chunk, wavID, i < len(chunks)-1)
		segments = append(segments, result.Emitted...)
		if err != nil {
			return segments, fmt.Errorf("process wave %s: %w", wavID, err)
		}
	}

	return segments, nil
}
