// Package config loads the stream configuration from a JSON file,
// merging partial files over built-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"
)

type Network struct {
	IP             string `json:"ip"`
	Port           int    `json:"port"`
	SendBufferSize int    `json:"socket_send_buffer_size"`
	RecvBufferSize int    `json:"socket_recv_buffer_size"`
}

type Audio struct {
	SampleRate      int `json:"sample_rate"`
	Channels        int `json:"channels"`
	FrameDurationMS int `json:"frame_duration_ms"`
}

type Jitter struct {
	MinDepth int `json:"min_depth"`
	MaxDepth int `json:"max_depth"`
}

type Send struct {
	RetryCount   int `json:"retry_count"`
	RetryDelayMS int `json:"retry_delay_ms"`
}

type Logging struct {
	StatsInterval int    `json:"stats_interval"` // in packets
	CSVFile       string `json:"csv_file"`
	EnableCSV     bool   `json:"enable_csv"`
}

type Config struct {
	Network Network `json:"network"`
	Audio   Audio   `json:"audio"`
	Jitter  Jitter  `json:"jitter"`
	Send    Send    `json:"send"`
	Logging Logging `json:"logging"`
}

func Default() Config {
	return Config{
		Network: Network{
			IP:             "127.0.0.1",
			Port:           5004,
			SendBufferSize: 8192,
			RecvBufferSize: 65536,
		},
		Audio: Audio{
			SampleRate:      48000,
			Channels:        2,
			FrameDurationMS: 20,
		},
		Jitter: Jitter{
			MinDepth: 1,
			MaxDepth: 10,
		},
		Send: Send{
			RetryCount:   2,
			RetryDelayMS: 2,
		},
		Logging: Logging{
			StatsInterval: 1000,
			EnableCSV:     false,
		},
	}
}

// Load reads a config file, merging it over the defaults. A missing
// file yields the defaults without error and writes them to path so
// there is a file to edit; a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if werr := cfg.save(path); werr != nil {
			slog.Warn("could not write default config",
				slog.String("path", path), slog.Any("err", werr))
		}
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("config: sample_rate must be positive")
	}
	if c.Audio.Channels < 1 {
		return fmt.Errorf("config: channels must be at least 1")
	}
	if c.Audio.FrameDurationMS <= 0 {
		return fmt.Errorf("config: frame_duration_ms must be positive")
	}
	if c.Jitter.MinDepth < 1 || c.Jitter.MaxDepth < c.Jitter.MinDepth {
		return fmt.Errorf("config: jitter depths must satisfy 1 <= min <= max")
	}
	if c.Send.RetryCount < 0 {
		return fmt.Errorf("config: retry_count must not be negative")
	}
	return nil
}

// FramePeriod is the audio duration of one packet.
func (c Config) FramePeriod() time.Duration {
	return time.Duration(c.Audio.FrameDurationMS) * time.Millisecond
}

// FrameSamples is the sample count of one frame per channel.
func (c Config) FrameSamples() int {
	return c.Audio.SampleRate * c.Audio.FrameDurationMS / 1000
}

// FrameBytes is the interleaved 16 bit PCM size of one frame.
func (c Config) FrameBytes() int {
	return c.FrameSamples() * c.Audio.Channels * 2
}

// Target is the remote address packets are sent to.
func (c Config) Target() string {
	return fmt.Sprintf("%s:%d", c.Network.IP, c.Network.Port)
}

// ListenAddr is the local address the receiver binds.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Network.Port)
}
