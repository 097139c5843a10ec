// ABOUTME: Configuration loading for the voicestage player
// ABOUTME: Reads defaults, an optional config file and VOICESTAGE_ env overrides via viper
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lanlan-project/voicestage/internal/player"
	"github.com/lanlan-project/voicestage/pkg/audio/output"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. VOICESTAGE_JITTER_MAX_DEPTH
const EnvPrefix = "VOICESTAGE"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Playback PlaybackConfig `mapstructure:"playback"`
	Jitter   JitterConfig   `mapstructure:"jitter"`
	LipSync  LipSyncConfig  `mapstructure:"lipsync"`
	Output   OutputConfig   `mapstructure:"output"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig locates the producer
type ServerConfig struct {
	// Addr is host:port; empty means discover over mDNS
	Addr              string        `mapstructure:"addr"`
	Name              string        `mapstructure:"name"`
	Path              string        `mapstructure:"path"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	MaxReconnectDelay time.Duration `mapstructure:"max_reconnect_delay"`
	DiscoverTimeout   time.Duration `mapstructure:"discover_timeout"`
}

// PlaybackConfig tunes the scheduler
type PlaybackConfig struct {
	StartLead        time.Duration `mapstructure:"start_lead"`
	Lookahead        time.Duration `mapstructure:"lookahead"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	BufferingTimeout time.Duration `mapstructure:"buffering_timeout"`
	QueueSize        int           `mapstructure:"queue_size"`
	// IdleSuspend pauses the output device after this much silence; 0 disables
	IdleSuspend time.Duration `mapstructure:"idle_suspend"`
}

// JitterConfig tunes the adaptive buffer depth
type JitterConfig struct {
	MinDepth          int `mapstructure:"min_depth"`
	MaxDepth          int `mapstructure:"max_depth"`
	InitialDepth      int `mapstructure:"initial_depth"`
	UnderrunThreshold int `mapstructure:"underrun_threshold"`
	StableThreshold   int `mapstructure:"stable_threshold"`
}

// LipSyncConfig tunes mouth animation
type LipSyncConfig struct {
	Gain          float64       `mapstructure:"gain"`
	FrameInterval time.Duration `mapstructure:"frame_interval"`
	Window        int           `mapstructure:"window"`
	Parameters    []string      `mapstructure:"parameters"`
}

// OutputConfig selects the audio device
type OutputConfig struct {
	Backend    string `mapstructure:"backend"` // oto, malgo, none
	SampleRate int    `mapstructure:"sample_rate"`
	Channels   int    `mapstructure:"channels"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address; empty disables the endpoint
	Addr string `mapstructure:"addr"`
}

// DefaultConfig returns the stock configuration
func DefaultConfig() *Config {
	engine := player.DefaultConfig()

	return &Config{
		Server: ServerConfig{
			Name:              "lanlan",
			Path:              "/ws",
			ReconnectDelay:    3 * time.Second,
			MaxReconnectDelay: 30 * time.Second,
			DiscoverTimeout:   10 * time.Second,
		},
		Playback: PlaybackConfig{
			StartLead:        engine.Scheduler.StartLead,
			Lookahead:        engine.Scheduler.Lookahead,
			PollInterval:     engine.Scheduler.PollInterval,
			BufferingTimeout: engine.Scheduler.BufferingTimeout,
			QueueSize:        engine.QueueSize,
			IdleSuspend:      engine.IdleSuspend,
		},
		Jitter: JitterConfig{
			MinDepth:          engine.Jitter.MinDepth,
			MaxDepth:          engine.Jitter.MaxDepth,
			InitialDepth:      engine.Jitter.InitialDepth,
			UnderrunThreshold: engine.Jitter.UnderrunThreshold,
			StableThreshold:   engine.Jitter.StableThreshold,
		},
		LipSync: LipSyncConfig{
			Gain:          engine.LipSync.Gain,
			FrameInterval: engine.FrameInterval,
			Window:        engine.LipSync.Window,
			Parameters:    engine.LipSync.Parameters,
		},
		Output: OutputConfig{
			Backend:    "oto",
			SampleRate: 48000,
			Channels:   2,
		},
	}
}

// Load reads configuration. path may be empty, in which case
// voicestage.{yaml,toml,json} is looked up in the working directory and
// ~/.voicestage; a missing file there is not an error. The result is not
// validated so callers can apply overrides first.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("voicestage")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.voicestage")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so env overrides apply to all of them
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.name", d.Server.Name)
	v.SetDefault("server.path", d.Server.Path)
	v.SetDefault("server.reconnect_delay", d.Server.ReconnectDelay)
	v.SetDefault("server.max_reconnect_delay", d.Server.MaxReconnectDelay)
	v.SetDefault("server.discover_timeout", d.Server.DiscoverTimeout)

	v.SetDefault("playback.start_lead", d.Playback.StartLead)
	v.SetDefault("playback.lookahead", d.Playback.Lookahead)
	v.SetDefault("playback.poll_interval", d.Playback.PollInterval)
	v.SetDefault("playback.buffering_timeout", d.Playback.BufferingTimeout)
	v.SetDefault("playback.queue_size", d.Playback.QueueSize)
	v.SetDefault("playback.idle_suspend", d.Playback.IdleSuspend)

	v.SetDefault("jitter.min_depth", d.Jitter.MinDepth)
	v.SetDefault("jitter.max_depth", d.Jitter.MaxDepth)
	v.SetDefault("jitter.initial_depth", d.Jitter.InitialDepth)
	v.SetDefault("jitter.underrun_threshold", d.Jitter.UnderrunThreshold)
	v.SetDefault("jitter.stable_threshold", d.Jitter.StableThreshold)

	v.SetDefault("lipsync.gain", d.LipSync.Gain)
	v.SetDefault("lipsync.frame_interval", d.LipSync.FrameInterval)
	v.SetDefault("lipsync.window", d.LipSync.Window)
	v.SetDefault("lipsync.parameters", d.LipSync.Parameters)

	v.SetDefault("output.backend", d.Output.Backend)
	v.SetDefault("output.sample_rate", d.Output.SampleRate)
	v.SetDefault("output.channels", d.Output.Channels)

	v.SetDefault("metrics.addr", d.Metrics.Addr)
}

// Validate rejects values the pipeline cannot run with
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return fmt.Errorf("server.name must not be empty")
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		return fmt.Errorf("server.path must start with /, got %q", c.Server.Path)
	}
	if c.Server.ReconnectDelay <= 0 {
		return fmt.Errorf("server.reconnect_delay must be positive, got %v", c.Server.ReconnectDelay)
	}
	if c.Output.SampleRate <= 0 {
		return fmt.Errorf("output.sample_rate must be positive, got %d", c.Output.SampleRate)
	}
	if c.Output.Channels < 1 || c.Output.Channels > 2 {
		return fmt.Errorf("output.channels must be 1 or 2, got %d", c.Output.Channels)
	}
	if _, err := output.NewBackend(c.Output.Backend); err != nil {
		return err
	}
	if err := c.Engine().Validate(); err != nil {
		return fmt.Errorf("invalid playback config: %w", err)
	}
	return nil
}

// Engine converts to the player engine configuration
func (c *Config) Engine() player.Config {
	return player.Config{
		Scheduler: player.SchedulerConfig{
			StartLead:        c.Playback.StartLead,
			Lookahead:        c.Playback.Lookahead,
			PollInterval:     c.Playback.PollInterval,
			BufferingTimeout: c.Playback.BufferingTimeout,
		},
		Jitter: player.JitterPolicy{
			MinDepth:          c.Jitter.MinDepth,
			MaxDepth:          c.Jitter.MaxDepth,
			InitialDepth:      c.Jitter.InitialDepth,
			UnderrunThreshold: c.Jitter.UnderrunThreshold,
			StableThreshold:   c.Jitter.StableThreshold,
		},
		LipSync: player.LipSyncConfig{
			Gain:       c.LipSync.Gain,
			Window:     c.LipSync.Window,
			Parameters: c.LipSync.Parameters,
		},
		FrameInterval: c.LipSync.FrameInterval,
		QueueSize:     c.Playback.QueueSize,
		IdleSuspend:   c.Playback.IdleSuspend,
	}
}

// Mixer converts to the output mixer configuration
func (c *Config) Mixer() output.MixerConfig {
	return output.MixerConfig{
		SampleRate:     c.Output.SampleRate,
		Channels:       c.Output.Channels,
		AnalyserWindow: c.LipSync.Window,
	}
}
