package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/audiolink/audiolink-go"
	"github.com/audiolink/audiolink-go/audio"
	"github.com/audiolink/audiolink-go/config"
	"github.com/audiolink/audiolink-go/metrics"
	"github.com/audiolink/audiolink-go/transport/udp"
)

type cliArgs struct {
	configPath string
	logLevel   string
	wavPath    string
	toneFreq   float64
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
		toneFreq:   440,
	}
	flag.StringVar(&args.configPath, "config", args.configPath, "path to config file")
	flag.StringVar(&args.logLevel, "log-level", args.logLevel, "log level")
	flag.StringVar(&args.wavPath, "wav", args.wavPath, "wav file to stream, a test tone is generated when empty")
	flag.Float64Var(&args.toneFreq, "tone", args.toneFreq, "test tone frequency in hz")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: args.LogLevel(),
	})))

	return &args, slog.Default()
}

// captureSource yields capture PCM blocks at the stream's sample rate.
type captureSource interface {
	Read(p []byte) (int, error)
}

func openSource(args *cliArgs, cfg config.Config, log *slog.Logger) (captureSource, func(), error) {
	if args.wavPath == "" {
		log.Info("streaming test tone", slog.Float64("freq", args.toneFreq))
		return audio.NewToneSource(args.toneFreq, cfg.Audio.SampleRate, cfg.Audio.Channels), func() {}, nil
	}

	src, err := audio.OpenWavSource(args.wavPath)
	if err != nil {
		return nil, nil, err
	}
	if src.Channels() != cfg.Audio.Channels {
		src.Close()
		return nil, nil, fmt.Errorf("wav has %d channels, stream wants %d", src.Channels(), cfg.Audio.Channels)
	}

	log.Info("streaming wav file",
		slog.String("path", args.wavPath),
		slog.Int("sample_rate", src.SampleRate()),
		slog.Int("channels", src.Channels()),
	)

	if src.SampleRate() == cfg.Audio.SampleRate {
		return src, func() { src.Close() }, nil
	}

	// the file rate differs from the stream rate, resample on the way in
	return &resampling{src: src, from: src.SampleRate(), to: cfg.Audio.SampleRate}, func() { src.Close() }, nil
}

type resampling struct {
	src  *audio.WavSource
	from int
	to   int
}

func (r *resampling) Read(p []byte) (int, error) {
	// read enough source audio to fill p after rate conversion
	srcLen := len(p) * r.from / r.to
	if srcLen%2 != 0 {
		srcLen++
	}
	buf := make([]byte, srcLen)
	n, err := r.src.Read(buf)
	if err != nil {
		return 0, err
	}

	out, err := audio.Resample(buf[:n], float64(r.from), float64(r.to))
	if err != nil {
		return 0, err
	}
	return copy(p, audio.FitBlock(out, len(p))), nil
}

func main() {
	args, log := initCLI()

	cfg, err := config.Load(args.configPath)
	if err != nil {
		log.Error("loading config failed", slog.Any("err", err))
		os.Exit(1)
	}

	src, closeSrc, err := openSource(args, cfg, log)
	if err != nil {
		log.Error("opening audio source failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer closeSrc()

	conn, err := udp.Dial(cfg.Target(), cfg.Network.SendBufferSize)
	if err != nil {
		log.Error("dialing failed", slog.Any("err", err))
		os.Exit(1)
	}

	opts := []audiolink.Option{
		audiolink.WithConfig(cfg),
		audiolink.WithConn(conn),
	}

	var csv *metrics.CSVSink
	if cfg.Logging.EnableCSV && cfg.Logging.CSVFile != "" {
		csv, err = metrics.NewCSVSink(cfg.Logging.CSVFile)
		if err != nil {
			log.Error("opening csv sink failed", slog.Any("err", err))
			os.Exit(1)
		}
		defer csv.Close()
		opts = append(opts, audiolink.WithStatsFunc(func(snap metrics.Snapshot) {
			if err := csv.Write(snap); err != nil {
				log.Error("csv write failed", slog.Any("err", err))
			}
		}))
	}

	tx, err := audiolink.NewSender(opts...)
	if err != nil {
		log.Error("creating sender failed", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		_ = tx.Run(ctx)
	}()

	log.Info("sending", slog.String("target", cfg.Target()))

	// capture loop, one block per frame period
	block := make([]byte, cfg.FrameBytes())
	ticker := time.NewTicker(cfg.FramePeriod())
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			n, err := src.Read(block)
			if err == io.EOF {
				log.Info("source drained")
				break loop
			}
			if err != nil {
				log.Error("reading source failed", slog.Any("err", err))
				break loop
			}
			tx.WriteCapture(block[:n])
		}
	}

	if err := tx.Close(5 * time.Second); err != nil {
		log.Error("shutdown failed", slog.Any("err", err))
		os.Exit(1)
	}
}
