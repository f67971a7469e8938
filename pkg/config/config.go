package config

import (
	"errors"
	"fmt"
)

type Configuration struct {
	SampleRate         int                `json:"sampleRate"`
	FrameShift         float64            `json:"frameShift"`
	FrameOverlap       float64            `json:"frameOverlap"`
	ChunkTime          float64            `json:"chunkTime"`
	PadLength          float64            `json:"padLength"`
	PostPadLength      float64            `json:"postPadLength"`
	NumFramesSkipped   int                `json:"numFramesSkipped"`
	SegmentBufferLen   int                `json:"segmentBufferLen"`
	InitialFrameOffset int                `json:"initialFrameOffset"`
	TailFrameDeficit   int                `json:"tailFrameDeficit"`
	SegmentsFile       string             `json:"segmentsFile,omitempty"`
	InputDevice        string             `json:"inputDevice,omitempty"`
	Decoder            DecoderConfig      `json:"decoder"`
	Segmentation       SegmentationConfig `json:"segmentation"`
}

type DecoderConfig struct {
	Engine string `json:"engine"`
	// EnergyThreshold and SpeechOffset are given in dBFS.
	EnergyThreshold      float64 `json:"energyThreshold"`
	SpeechOffset         float64 `json:"speechOffset"`
	ModelPath            string  `json:"modelPath,omitempty"`
	Threshold            float64 `json:"threshold,omitempty"`
	MinSilenceDurationMs int     `json:"minSilenceDurationMs,omitempty"`
	SpeechPadMs          int     `json:"speechPadMs,omitempty"`
}

type SegmentationConfig struct {
	SilencePhones         []int32 `json:"silencePhones,omitempty"`
	MinSegmentLength      int     `json:"minSegmentLength"`
	MaxIntersegmentLength int     `json:"maxIntersegmentLength"`
	MergeLabels           []int32 `json:"mergeLabels,omitempty"`
	MergeDstLabel         int32   `json:"mergeDstLabel,omitempty"`
}

// Defaults returns the configuration used when no file is provided.
func Defaults() Configuration {
	return Configuration{
		SampleRate:         16000,
		FrameShift:         0.01,
		FrameOverlap:       0.015,
		ChunkTime:          0.1,
		PadLength:          2,
		PostPadLength:      3,
		NumFramesSkipped:   10,
		SegmentBufferLen:   100,
		InitialFrameOffset: 6,
		TailFrameDeficit:   7,
		SegmentsFile:       "segments",
		Decoder: DecoderConfig{
			Engine:               "energy",
			EnergyThreshold:      -35,
			SpeechOffset:         6,
			Threshold:            0.5,
			MinSilenceDurationMs: 100,
			SpeechPadMs:          30,
		},
		Segmentation: SegmentationConfig{
			SilencePhones:         []int32{1},
			MinSegmentLength:      5,
			MaxIntersegmentLength: 30,
		},
	}
}

// Validate checks the values that cannot be checked by decoding alone.
// The frame geometry is validated when the vad options are derived.
func (c Configuration) Validate() error {
	var errs []error

	switch c.Decoder.Engine {
	case "energy", "silero":
	default:
		errs = append(errs, fmt.Errorf("unsupported decoder engine %q, supported engines are energy and silero", c.Decoder.Engine))
	}
	if c.Decoder.Engine == "silero" && c.Decoder.ModelPath == "" {
		errs = append(errs, errors.New("decoder.modelPath must be set for the silero engine"))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sampleRate must be positive but was %d", c.SampleRate))
	}
	if c.Segmentation.MinSegmentLength < 0 {
		errs = append(errs, fmt.Errorf("segmentation.minSegmentLength must not be negative but was %d", c.Segmentation.MinSegmentLength))
	}
	if len(c.Segmentation.MergeLabels) > 0 && c.Segmentation.MergeDstLabel == 0 {
		errs = append(errs, errors.New("segmentation.mergeDstLabel must be set when segmentation.mergeLabels are configured"))
	}

	return errors.Join(errs...)
}
