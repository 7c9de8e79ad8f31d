package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/audiolink/audiolink-go"
	"github.com/audiolink/audiolink-go/audio"
	"github.com/audiolink/audiolink-go/config"
	"github.com/audiolink/audiolink-go/diag"
	"github.com/audiolink/audiolink-go/metrics"
	"github.com/audiolink/audiolink-go/transport/udp"
)

type cliArgs struct {
	configPath string
	logLevel   string
	outPath    string
	diagAddr   string
}

func (a *cliArgs) LogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(a.logLevel)); err != nil {
		panic(fmt.Errorf("invalid log level [%s]: %w", a.logLevel, err))
	}
	return lvl
}

func initCLI() (*cliArgs, *slog.Logger) {
	args := cliArgs{
		configPath: "config.json",
		logLevel:   "info",
	}
	flag.StringVar(&args.configPath, "config", args.configPath, "path to config file")
	flag.StringVar(&args.logLevel, "log-level", args.logLevel, "log level")
	flag.StringVar(&args.outPath, "out", args.outPath, "wav file to record playback into, discarded when empty")
	flag.StringVar(&args.diagAddr, "diag", args.diagAddr, "serve live metrics over websocket on this address")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: args.LogLevel(),
	})))

	return &args, slog.Default()
}

func main() {
	args, log := initCLI()

	cfg, err := config.Load(args.configPath)
	if err != nil {
		log.Error("loading config failed", slog.Any("err", err))
		os.Exit(1)
	}

	conn, err := udp.Listen(cfg.ListenAddr(), cfg.Network.RecvBufferSize)
	if err != nil {
		log.Error("listening failed", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := []audiolink.Option{
		audiolink.WithConfig(cfg),
		audiolink.WithConn(conn),
	}

	var statsSinks []func(metrics.Snapshot)

	if cfg.Logging.EnableCSV && cfg.Logging.CSVFile != "" {
		csv, err := metrics.NewCSVSink(cfg.Logging.CSVFile)
		if err != nil {
			log.Error("opening csv sink failed", slog.Any("err", err))
			os.Exit(1)
		}
		defer csv.Close()
		statsSinks = append(statsSinks, func(snap metrics.Snapshot) {
			if err := csv.Write(snap); err != nil {
				log.Error("csv write failed", slog.Any("err", err))
			}
		})
	}

	if args.diagAddr != "" {
		srv := diag.NewServer(args.diagAddr)
		if err := srv.Run(ctx); err != nil {
			log.Error("starting diag server failed", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
		log.Info("diag server up", slog.Int("port", srv.Port()))
		statsSinks = append(statsSinks, srv.Publish)
	}

	if len(statsSinks) > 0 {
		opts = append(opts, audiolink.WithStatsFunc(func(snap metrics.Snapshot) {
			for _, sink := range statsSinks {
				sink(snap)
			}
		}))
	}

	rx, err := audiolink.NewReceiver(opts...)
	if err != nil {
		log.Error("creating receiver failed", slog.Any("err", err))
		os.Exit(1)
	}

	var sink *audio.WavSink
	if args.outPath != "" {
		sink, err = audio.CreateWavSink(args.outPath, cfg.Audio.SampleRate, cfg.Audio.Channels)
		if err != nil {
			log.Error("opening wav sink failed", slog.Any("err", err))
			os.Exit(1)
		}
		log.Info("recording playback", slog.String("path", args.outPath))
	}

	go func() {
		_ = rx.Run(ctx)
	}()

	log.Info("receiving", slog.String("addr", cfg.ListenAddr()))

	// render loop, one frame per period
	frame := make([]byte, cfg.FrameBytes())
	ticker := time.NewTicker(cfg.FramePeriod())
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			n := rx.ReadRender(frame)
			if sink != nil {
				if _, err := sink.Write(frame[:n]); err != nil {
					log.Error("wav write failed", slog.Any("err", err))
					break loop
				}
			}
		}
	}

	if err := rx.Close(5 * time.Second); err != nil {
		log.Error("shutdown failed", slog.Any("err", err))
		os.Exit(1)
	}

	if sink != nil {
		if err := sink.Close(); err != nil {
			log.Error("closing wav sink failed", slog.Any("err", err))
		}
	}
}
