package vad

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mgoltzsche/online-vad/internal/model"
)

// SessionConfig wires a session with its collaborators.
type SessionConfig struct {
	Options   Options
	Decoders  DecoderFactory
	Phones    PhoneGrouper
	Segmenter Segmenter
	Sink      Sink
	Observer  Observer
	Logger    *slog.Logger
}

// Result is the outcome of processing a single chunk.
type Result struct {
	// Continuing is false when a segment boundary was found and the decoder was reset.
	Continuing bool
	// Segments is the trace of segment boundaries crossed by the decode pass.
	Segments []model.Segment
	// Emitted lists the segments finalized while processing the chunk.
	Emitted []model.SegmentEvent
}

// Session segments a single audio stream. A session must not be used
// concurrently: the caller delivers chunks one at a time in temporal order.
type Session struct {
	opts      Options
	trigger   PassTrigger
	stitcher  Stitcher
	resets    *ResetManager
	phones    PhoneGrouper
	segmenter Segmenter
	sink      Sink
	observer  Observer
	logger    *slog.Logger
	state     State
}

func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Decoders == nil || cfg.Phones == nil || cfg.Segmenter == nil || cfg.Sink == nil {
		return nil, errors.New("new vad session: decoder factory, phone grouper, segmenter and sink must be provided")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	resets, err := newResetManager(cfg.Options, cfg.Decoders, logger)
	if err != nil {
		return nil, fmt.Errorf("new vad session: %w", err)
	}

	return &Session{
		opts:      cfg.Options,
		trigger:   newPassTrigger(cfg.Options),
		stitcher:  newStitcher(cfg.Options),
		resets:    resets,
		phones:    cfg.Phones,
		segmenter: cfg.Segmenter,
		sink:      cfg.Sink,
		observer:  observer,
		logger:    logger,
		state: State{
			GlobalFrameOffset: cfg.Options.InitialFrameOffset,
			Continuing:        true,
		},
	}, nil
}

// State returns a snapshot of the session's bookkeeping.
func (s *Session) State() State {
	return s.state
}

// Decoder returns the decoder instance currently in use.
func (s *Session) Decoder() Decoder {
	return s.resets.Decoder()
}

// ProcessChunk processes a chunk, treating every failure except a sink
// failure as a non-terminal chunk. A returned error is fatal to the session.
func (s *Session) ProcessChunk(chunk []float32, wavID string, recording bool) (Result, error) {
	result, err := s.Process(chunk, wavID, recording)
	if err != nil {
		if IsFatal(err) {
			return Result{Continuing: true, Emitted: result.Emitted}, err
		}

		s.logger.Warn("vad pass failed, continuing recognition", "wavId", wavID, "err", err)

		result.Continuing = true
	}

	return result, nil
}

// Process appends the chunk to the decoder input and runs a decode pass when
// enough audio has accumulated. When recording is false the pending segment
// is finalized after the chunk has been processed, also when the decoder
// failed. In that case the failed pass is discarded and the collaborator
// error is returned together with the finalized segment.
func (s *Session) Process(chunk []float32, wavID string, recording bool) (Result, error) {
	result, err := s.process(chunk, wavID, recording)
	if err == nil || recording || IsFatal(err) {
		return result, err
	}

	evt, endErr := s.EndRecording(wavID)
	if endErr != nil {
		return Result{Continuing: true, Emitted: result.Emitted}, errors.Join(endErr, err)
	}

	result.Continuing = true
	result.Emitted = append(result.Emitted, evt)

	return result, err
}

func (s *Session) process(chunk []float32, wavID string, recording bool) (Result, error) {
	s.state.Audio.Append(chunk)
	s.state.ChunkCount++

	decoder := s.resets.Decoder()
	if err := decoder.AcceptWaveform(s.opts.SampleRate, chunk); err != nil {
		return Result{Continuing: true}, collaboratorError("accept waveform", err)
	}
	if err := decoder.Advance(); err != nil {
		return Result{Continuing: true}, collaboratorError("advance decoding", err)
	}

	var result Result

	passRan := s.trigger.ShouldRun(s.state.ChunkCount)
	if passRan {
		start := time.Now()

		next, pass, err := s.decodePass(wavID)
		if err != nil {
			s.observer.PassFailed()
			return Result{Continuing: true}, err
		}

		result.Segments = pass.Trace

		if err := s.emit(pass.Emitted); err != nil {
			return Result{Continuing: true}, err
		}

		result.Emitted = pass.Emitted
		s.state = next

		s.observer.PassCompleted(time.Since(start))
	}

	if !recording {
		evt, err := s.EndRecording(wavID)
		if err != nil {
			return Result{Continuing: true, Emitted: result.Emitted}, err
		}

		result.Emitted = append(result.Emitted, evt)
	}

	if passRan {
		var resetErr error

		if !s.state.Continuing && recording {
			resetErr = s.resets.Reset(&s.state)
			if resetErr == nil {
				s.observer.DecoderReset()
				s.logger.Debug("decoder reset", "wavId", wavID, "globalFrameOffset", s.state.GlobalFrameOffset)
			}
		}

		s.state.OldFramesDecoded = s.state.NewFramesDecoded
		s.state.Audio.Compact(s.opts.CarryOverSamples())

		if resetErr != nil {
			result.Continuing = true
			return result, collaboratorError("reset decoder", resetErr)
		}
	}

	result.Continuing = s.state.Continuing

	return result, nil
}

// decodePass segments the alignment decoded since the previous pass.
// It does not modify the session but returns the updated state.
func (s *Session) decodePass(wavID string) (State, Pass, error) {
	alignment, err := s.resets.Decoder().BestPathAlignment(true)
	if err != nil {
		return State{}, Pass{}, collaboratorError("get best path alignment", err)
	}

	newFrames := len(alignment)
	from := max(0, s.state.OldFramesDecoded-s.opts.NumFramesSkipped)
	to := newFrames - s.opts.NumFramesSkipped

	var recent []int32
	if to > from {
		recent = alignment[from:to]
	}

	phones, err := s.phones.GroupPhones(recent)
	if err != nil {
		return State{}, Pass{}, collaboratorError("group alignment into phones", err)
	}

	raw, err := s.segmenter.Segment(phones)
	if err != nil {
		return State{}, Pass{}, collaboratorError("segment phones", err)
	}

	next, pass := s.stitcher.Stitch(s.state, wavID, raw)
	next.NewFramesDecoded = newFrames

	return next, pass, nil
}

// EndRecording finalizes the pending segment, even when it is empty.
func (s *Session) EndRecording(wavID string) (model.SegmentEvent, error) {
	next, evt := s.stitcher.Flush(s.state, wavID)

	if err := s.emit([]model.SegmentEvent{evt}); err != nil {
		return evt, err
	}

	s.state = next

	return evt, nil
}

func (s *Session) emit(events []model.SegmentEvent) error {
	for _, evt := range events {
		if err := s.sink.WriteSegment(evt); err != nil {
			return sinkError("write segment "+evt.UtteranceID(), err)
		}

		s.observer.SegmentEmitted(evt.Segment)
		s.logger.Debug("segment finalized", "id", evt.UtteranceID(), "start", evt.Start, "end", evt.End)
	}

	return nil
}

// Reinitiate starts a new logical utterance on the same decoder.
// The global frame offset and the segment sequence are preserved.
func (s *Session) Reinitiate() {
	s.state.Continuing = true
	s.state.ChunkCount = 0
	s.state.Pending = model.Segment{}
}

// Close releases the decoder.
func (s *Session) Close() error {
	return s.resets.Close()
}
