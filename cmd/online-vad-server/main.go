package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mgoltzsche/online-vad/internal/channel"
	"github.com/mgoltzsche/online-vad/internal/cli"
	"github.com/mgoltzsche/online-vad/internal/metrics"
	"github.com/mgoltzsche/online-vad/internal/pipeline"
	"github.com/mgoltzsche/online-vad/internal/segfile"
	"github.com/mgoltzsche/online-vad/internal/server"
	"github.com/mgoltzsche/online-vad/internal/tlsutils"
	"github.com/mgoltzsche/online-vad/pkg/config"
)

func main() {
	configFile := "/etc/online-vad/config.yaml"
	cfg, err := config.FromFile(configFile)
	configFlag := &config.Flag{File: configFile, Config: &cfg}

	listenAddr := ":8443"
	tlsEnabled := false
	tlsCert := ""
	tlsKey := ""

	flag.Var(configFlag, "config", "Path to the configuration file")
	flag.StringVar(&cfg.SegmentsFile, "segments", cfg.SegmentsFile, "path to the file the segments are appended to")
	flag.StringVar(&cfg.Decoder.Engine, "decoder", cfg.Decoder.Engine, "decoder engine, energy or silero")
	flag.StringVar(&cfg.Decoder.ModelPath, "vad-model", cfg.Decoder.ModelPath, "path to the silero VAD model")
	flag.StringVar(&listenAddr, "listen", listenAddr, "Address the server should listen on")
	flag.BoolVar(&tlsEnabled, "tls", tlsEnabled, "Serve securely via HTTPS/TLS")
	flag.StringVar(&tlsKey, "tls-key", tlsKey, "Path to the TLS key file")
	flag.StringVar(&tlsCert, "tls-cert", tlsCert, "Path to the TLS certificate file")
	cli.ParseFlagsWithEnvVars(flag.CommandLine, "VAD_")

	if !configFlag.IsSet && err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error(err.Error())
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error(fmt.Sprintf("invalid configuration: %s", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = runServer(ctx, cfg, listenAddr, tlsEnabled, tlsCert, tlsKey)
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func runServer(ctx context.Context, cfg config.Configuration, listenAddr string, tlsEnabled bool, tlsCert, tlsKey string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	segments, err := segfile.Open(cfg.SegmentsFile)
	if err != nil {
		return err
	}
	defer segments.Close()

	sessions, err := pipeline.NewSessionFactory(cfg, segments, m)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	srv := &http.Server{
		Addr:        listenAddr,
		BaseContext: func(net.Listener) context.Context { return ctx },
		Handler:     mux,
	}

	server.AddRoutes(ctx, server.Options{
		Channels:     channel.NewChannels(sessions, m.ActiveSessions),
		Gatherer:     reg,
		HTTPRequests: m.HTTPRequests,
	}, mux)

	go func() {
		<-ctx.Done()
		slog.Info("terminating")
		srv.Shutdown(context.Background())
	}()

	if tlsEnabled {
		if tlsCert == "" && tlsKey == "" {
			slog.Info("generating self-signed TLS certificate")

			var hosts []string
			if host, _, err := net.SplitHostPort(listenAddr); err == nil && host != "" {
				hosts = append(hosts, host)
			}

			cert, err := tlsutils.GenerateSelfSignedCertificate(hosts...)
			if err != nil {
				return fmt.Errorf("generating tls certificate: %w", err)
			}

			defer cert.Remove()

			tlsCert, tlsKey = cert.CertFile, cert.KeyFile
		}

		slog.Info(fmt.Sprintf("listening on %s", srv.Addr))

		err = srv.ListenAndServeTLS(tlsCert, tlsKey)
	} else {
		slog.Info(fmt.Sprintf("listening on %s", srv.Addr))

		err = srv.ListenAndServe()
	}
	if err == http.ErrServerClosed {
		return nil
	}

	return err
}
