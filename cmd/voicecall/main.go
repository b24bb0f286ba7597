package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"voice-call/config"
	"voice-call/internal/application"
	"voice-call/internal/domain"
	"voice-call/internal/infra/audio"
	"voice-call/internal/infra/control"
	"voice-call/internal/infra/exchange"
	"voice-call/internal/infra/metrics"
	"voice-call/internal/infra/playback"
	"voice-call/internal/infra/pushover"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("voice call stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shut down cleanly")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	device := createCaptureDevice(cfg.Audio, logger)

	encoder, err := createEncoder(cfg.Audio)
	if err != nil {
		return err
	}

	pipelineCfg, err := buildPipelineConfig(cfg)
	if err != nil {
		return err
	}

	timeout, err := cfg.ExchangeTimeout()
	if err != nil {
		return err
	}
	exchangeClient := exchange.NewClient(cfg.Exchange.BaseURL, timeout, cfg.Exchange.MaxAttempts)

	player, err := createPlayer(cfg.Playback, logger)
	if err != nil {
		return err
	}

	var notifier application.Notifier
	if cfg.Pushover.Enabled {
		notifier = pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.UserKey)
	} else {
		notifier = &application.LogNotifier{Logger: logger}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	errs := make(chan error, 16)

	pipeline := application.NewPipeline(device, encoder, pipelineCfg, m, errs, logger)
	if src, ok := device.(*audio.FileSource); ok && !cfg.Audio.Realtime {
		pipeline.WithClock(src.StreamTime)
	}
	turns := application.NewTurnController(pipeline, exchangeClient, player, notifier, m, errs, logger)
	defer turns.Close()
	pipeline.SetHandoff(turns.OnUtteranceReady)

	server := control.NewServer(
		cfg.Control.Addr,
		cfg.Control.AuthToken,
		turns,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		map[string]control.Checker{"exchange": exchangeClient.Ping},
		logger,
	)

	if cfg.Control.AutoStart {
		turns.SetEnabled(true)
	}

	logger.Info("starting voice call",
		"device", device.Name(),
		"encoding", encoder.MediaType(),
		"exchange", cfg.Exchange.BaseURL,
		"control_addr", cfg.Control.Addr,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := pipeline.Run(gctx)
		if errors.Is(err, domain.ErrDeviceUnavailable) {
			if nerr := notifier.Notify(context.Background(), fmt.Sprintf("Microphone unavailable: %v", err)); nerr != nil {
				logger.Error("notifying device failure", "error", nerr)
			}
			return err
		}
		if err == nil {
			// the replay source ran out; let the last turn finish
			turns.Wait()
			cancel()
			return nil
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		if err := server.Start(gctx); err != nil {
			return fmt.Errorf("starting control server: %w", err)
		}
		<-gctx.Done()
		return server.Stop()
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case err := <-errs:
				logger.Warn("pipeline error", "error", err)
				if errors.Is(err, domain.ErrExchangeFailure) {
					if nerr := notifier.Notify(gctx, "Could not reach the assistant, please try again"); nerr != nil {
						logger.Error("notifying exchange failure", "error", nerr)
					}
				}
			}
		}
	})

	return g.Wait()
}

func createCaptureDevice(cfg config.AudioConfig, logger *slog.Logger) application.CaptureDevice {
	switch cfg.Source {
	case "file":
		return audio.NewFileSource(cfg.FilePath, cfg.SampleRate, cfg.Realtime)
	default:
		return audio.NewMicrophoneSource(cfg.SampleRate, cfg.FrameSize, logger)
	}
}

func createEncoder(cfg config.AudioConfig) (domain.Encoder, error) {
	if cfg.Encoding == "ogg" {
		enc, err := audio.NewOggOpusEncoder(cfg.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("creating ogg encoder: %w", err)
		}
		return enc, nil
	}
	return audio.NewWAVEncoder(cfg.SampleRate), nil
}

func createPlayer(cfg config.PlaybackConfig, logger *slog.Logger) (application.Player, error) {
	switch cfg.Mode {
	case "file":
		return playback.NewFilePlayer(cfg.Dir), nil
	case "none":
		return application.NoopPlayer{}, nil
	default:
		p, err := playback.NewCommandPlayer(cfg.Command, logger)
		if err != nil {
			return nil, fmt.Errorf("creating player: %w", err)
		}
		return p, nil
	}
}

func buildPipelineConfig(cfg *config.Config) (application.PipelineConfig, error) {
	silence, err := cfg.SilenceDuration()
	if err != nil {
		return application.PipelineConfig{}, err
	}
	restart, err := cfg.RestartDelay()
	if err != nil {
		return application.PipelineConfig{}, err
	}

	pc := application.DefaultPipelineConfig()
	pc.Segmenter = application.SegmenterConfig{
		VoiceThreshold:  cfg.VAD.VoiceThreshold,
		SilenceDuration: silence,
		RestartDelay:    restart,
	}
	pc.Format.SampleRate = cfg.Audio.SampleRate
	pc.Format.FrameSize = cfg.Audio.FrameSize
	pc.MinUtteranceBytes = cfg.VAD.MinUtteranceBytes
	pc.StrictInvariants = cfg.VAD.Strict
	return pc, nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
