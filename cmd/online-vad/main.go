package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mgoltzsche/online-vad/internal/audio"
	"github.com/mgoltzsche/online-vad/internal/cli"
	"github.com/mgoltzsche/online-vad/internal/pipeline"
	"github.com/mgoltzsche/online-vad/internal/segfile"
	"github.com/mgoltzsche/online-vad/internal/vad"
	"github.com/mgoltzsche/online-vad/pkg/config"
)

func main() {
	configFile := "/etc/online-vad/config.yaml"
	cfg, err := config.FromFile(configFile)
	configFlag := &config.Flag{File: configFile, Config: &cfg}
	concurrency := 4
	listDevices := false

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [FLAGS] FILE.wav...\n\nSegments 16 bit wave files or microphone input into speech segments.\n\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Var(configFlag, "config", "Path to the configuration file")
	flag.StringVar(&cfg.SegmentsFile, "segments", cfg.SegmentsFile, "path to the file the segments are appended to")
	flag.StringVar(&cfg.InputDevice, "input-device", cfg.InputDevice, "name or ID of the audio input device to record from instead of reading files")
	flag.StringVar(&cfg.Decoder.Engine, "decoder", cfg.Decoder.Engine, "decoder engine, energy or silero")
	flag.StringVar(&cfg.Decoder.ModelPath, "vad-model", cfg.Decoder.ModelPath, "path to the silero VAD model")
	flag.Float64Var(&cfg.Decoder.EnergyThreshold, "energy-threshold", cfg.Decoder.EnergyThreshold, "energy in dBFS a frame must reach to start speech")
	flag.IntVar(&concurrency, "concurrency", concurrency, "number of files processed concurrently")
	flag.BoolVar(&listDevices, "list-devices", listDevices, "print the audio input devices and exit")
	cli.ParseFlagsWithEnvVars(flag.CommandLine, "VAD_")

	if !configFlag.IsSet && err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error(err.Error())
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error(fmt.Sprintf("invalid configuration: %s", err))
		os.Exit(1)
	}

	if listDevices {
		if err := audio.PrintInputDevices(os.Stdout); err != nil {
			slog.Error(err.Error())
			os.Exit(1)
		}
		return
	}

	files := flag.Args()
	if len(files) == 0 && cfg.InputDevice == "" {
		flag.Usage()
		slog.Error("no input provided, specify wave files or an input device")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		slog.Info("terminating")
	}()

	err = run(ctx, cfg, files, concurrency)
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Configuration, files []string, concurrency int) error {
	segments, err := segfile.Open(cfg.SegmentsFile)
	if err != nil {
		return err
	}
	defer segments.Close()

	sessions, err := pipeline.NewSessionFactory(cfg, segments, nil)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return detectVoiceActivity(ctx, cfg, sessions)
	}

	return processFiles(ctx, sessions, files, concurrency)
}

func processFiles(ctx context.Context, sessions *pipeline.SessionFactory, files []string, concurrency int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, concurrency))

	for _, file := range files {
		g.Go(func() error {
			return processFile(ctx, sessions, file)
		})
	}

	return g.Wait()
}

func processFile(ctx context.Context, sessions *pipeline.SessionFactory, file string) error {
	wavID := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	s, err := sessions.NewSession(wavID)
	if err != nil {
		return err
	}
	defer closeSession(s, wavID)

	segments, err := pipeline.ProcessWave(ctx, s, sessions.Options(), wavID, f)
	for _, seg := range segments {
		fmt.Printf("%s %s %.2f %.2f\n", seg.UtteranceID(), seg.WavID, seg.Start, seg.End)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}

	slog.Info("segmented recording", "wavId", wavID, "segments", len(segments))

	return nil
}

func detectVoiceActivity(ctx context.Context, cfg config.Configuration, sessions *pipeline.SessionFactory) error {
	input := &audio.Input{
		Device:     cfg.InputDevice,
		SampleRate: cfg.SampleRate,
		ChunkSize:  sessions.Options().SamplesPerChunk(),
	}

	wavID := "mic"

	s, err := sessions.NewSession(wavID)
	if err != nil {
		return err
	}
	defer closeSession(s, wavID)

	audioInput, err := input.RecordAudio(ctx)
	if err != nil {
		return err
	}

	detector := &vad.Detector{
		Session: s,
		WavID:   wavID,
	}

	slog.Info("listening, press Ctrl+C to stop")

	for seg := range detector.DetectVoiceActivity(ctx, audioInput) {
		fmt.Printf("%s %s %.2f %.2f\n", seg.UtteranceID(), seg.WavID, seg.Start, seg.End)
	}

	return nil
}

func closeSession(s *vad.Session, wavID string) {
	if err := s.Close(); err != nil {
		slog.Warn("failed to close session", "wavId", wavID, "err", err)
	}
}
