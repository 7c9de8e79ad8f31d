package audiolink

import (
	"log/slog"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/audiolink/audiolink-go/codec"
	"github.com/audiolink/audiolink-go/config"
	"github.com/audiolink/audiolink-go/metrics"
	"github.com/audiolink/audiolink-go/transport"
)

type options struct {
	id        string
	logger    *slog.Logger
	cfg       config.Config
	conn      transport.Conn
	encoder   codec.Encoder
	decoder   codec.Decoder
	collector *metrics.Collector
	statsFunc func(metrics.Snapshot)
}

type Option func(opts *options)

func withDefaults() Option {
	return withOptions(
		WithLogger(slog.Default()),
		WithConfig(config.Default()),
		WithID(NewID()),
	)
}

func withOptions(os ...Option) Option {
	return func(opts *options) {
		for _, o := range os {
			o(opts)
		}
	}
}

// NewID returns a short random stream identifier.
func NewID() string {
	return gonanoid.Must()
}

func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

func WithConfig(cfg config.Config) Option {
	return func(opts *options) {
		opts.cfg = cfg
	}
}

func WithID(id string) Option {
	return func(opts *options) {
		opts.id = id
	}
}

// WithConn sets the datagram connection the stream runs over. The
// stream takes ownership and closes it on shutdown.
func WithConn(conn transport.Conn) Option {
	return func(opts *options) {
		opts.conn = conn
	}
}

func WithEncoder(enc codec.Encoder) Option {
	return func(opts *options) {
		opts.encoder = enc
	}
}

func WithDecoder(dec codec.Decoder) Option {
	return func(opts *options) {
		opts.decoder = dec
	}
}

// WithCollector shares a metrics collector with the caller, for
// example to expose it over a diagnostics endpoint.
func WithCollector(col *metrics.Collector) Option {
	return func(opts *options) {
		opts.collector = col
	}
}

// WithStatsFunc installs a callback invoked with a metrics snapshot
// every stats interval. It runs on the stream loop and must be quick.
func WithStatsFunc(fn func(metrics.Snapshot)) Option {
	return func(opts *options) {
		opts.statsFunc = fn
	}
}

// newOptions applies opts over the defaults and fills codec and
// collector fallbacks derived from the final config.
func newOptions(opts ...Option) *options {
	o := &options{}
	withDefaults()(o)
	for _, opt := range opts {
		opt(o)
	}

	if o.encoder == nil {
		o.encoder = codec.NewPCM(o.cfg.Audio.Channels)
	}
	if o.decoder == nil {
		o.decoder = codec.NewPCM(o.cfg.Audio.Channels)
	}
	if o.collector == nil {
		o.collector = metrics.NewCollector()
	}
	return o
}
