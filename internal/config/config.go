// Package config assembles the daemon configuration from defaults, an
// optional YAML file, the environment and command-line flags, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"wes/internal/engine"
	"wes/internal/llm"
)

type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Runner  RunnerConfig  `yaml:"runner"`
	LLM     llm.Config    `yaml:"llm"`
	Sensor  SensorConfig  `yaml:"sensor"`
	Display DisplayConfig `yaml:"display"`
	Voice   VoiceConfig   `yaml:"voice"`
	Speech  SpeechConfig  `yaml:"speech"`
	Store   StoreConfig   `yaml:"store"`

	// Proxy is a SOCKS5 address for cloud LLM providers; empty dials direct.
	Proxy  string `yaml:"proxy"`
	Socket string `yaml:"socket"`
	Log    string `yaml:"log"`
}

type EngineConfig struct {
	Threshold        int           `yaml:"threshold"`
	Keyword          string        `yaml:"keyword"`
	ListenTimeout    time.Duration `yaml:"listen_timeout"`
	GenerateTimeout  time.Duration `yaml:"generate_timeout"`
	RetriggerHoldoff time.Duration `yaml:"retrigger_holdoff"`
}

type RunnerConfig struct {
	Tick            time.Duration `yaml:"tick"`
	ErrorCooldown   time.Duration `yaml:"error_cooldown"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type SensorConfig struct {
	// Kind is "vcnl4040" or "virtual". The virtual source is always present
	// so the control socket can trigger a cycle.
	Kind string `yaml:"kind"`
	Bus  string `yaml:"bus"`
	Addr uint16 `yaml:"addr"`
}

type DisplayConfig struct {
	// BusURL is the websocket hub of the panel shard; empty disables it.
	BusURL       string `yaml:"bus_url"`
	Target       string `yaml:"target"`
	BacklightPin string `yaml:"backlight_pin"`
}

type VoiceConfig struct {
	// Mode is "mic" or "clips".
	Mode         string  `yaml:"mode"`
	WhisperModel string  `yaml:"whisper_model"`
	Language     string  `yaml:"language"`
	ClipDir      string  `yaml:"clip_dir"`
	Chime        string  `yaml:"chime"`
	Duck         bool    `yaml:"duck"`
	DuckFactor   float64 `yaml:"duck_factor"`
}

type SpeechConfig struct {
	// Engine is "espeak" or "silent".
	Engine string `yaml:"engine"`
	Voice  string `yaml:"voice"`
	Rate   int    `yaml:"rate"`
}

type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // empty uses store.DefaultPath
}

func Default() Config {
	ec := engine.DefaultConfig()
	rc := engine.DefaultRunnerConfig()
	return Config{
		Engine: EngineConfig{
			Threshold:        ec.Threshold,
			Keyword:          ec.Keyword,
			ListenTimeout:    ec.ListenTimeout,
			GenerateTimeout:  ec.GenerateTimeout,
			RetriggerHoldoff: ec.RetriggerHoldoff,
		},
		Runner: RunnerConfig{
			Tick:            rc.TickInterval,
			ErrorCooldown:   rc.ErrorCooldown,
			ShutdownTimeout: rc.ShutdownTimeout,
		},
		LLM: llm.DefaultConfig(),
		Sensor: SensorConfig{
			Kind: "vcnl4040",
			Addr: 0x60,
		},
		Display: DisplayConfig{
			Target: "DISPLAY",
		},
		Voice: VoiceConfig{
			Mode:         "mic",
			WhisperModel: "models/ggml-base.en.bin",
			Language:     "en",
			Chime:        "assets/chime.mp3",
			Duck:         true,
			DuckFactor:   0.3,
		},
		Speech: SpeechConfig{
			Engine: "espeak",
			Voice:  "en",
		},
		Store:  StoreConfig{Enabled: true},
		Socket: "/tmp/wes.sock",
		Log:    "info",
	}
}

// LoadFile overlays the YAML file at path onto cfg. Keys missing from the
// file keep their current value.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// EngineConfig converts to the engine's own config.
func (c Config) EngineConfig() engine.Config {
	return engine.Config{
		Threshold:        c.Engine.Threshold,
		Keyword:          c.Engine.Keyword,
		ListenTimeout:    c.Engine.ListenTimeout,
		GenerateTimeout:  c.Engine.GenerateTimeout,
		RetriggerHoldoff: c.Engine.RetriggerHoldoff,
	}
}

func (c Config) RunnerConfig() engine.RunnerConfig {
	return engine.RunnerConfig{
		TickInterval:    c.Runner.Tick,
		ErrorCooldown:   c.Runner.ErrorCooldown,
		ShutdownTimeout: c.Runner.ShutdownTimeout,
	}
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	positive := func(name string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}

	positive("engine.listen_timeout", c.Engine.ListenTimeout)
	positive("engine.generate_timeout", c.Engine.GenerateTimeout)
	positive("runner.tick", c.Runner.Tick)
	positive("runner.shutdown_timeout", c.Runner.ShutdownTimeout)
	if c.Engine.RetriggerHoldoff < 0 {
		errs = append(errs, errors.New("engine.retrigger_holdoff must not be negative"))
	}
	if c.Runner.ErrorCooldown < 0 {
		errs = append(errs, errors.New("runner.error_cooldown must not be negative"))
	}
	if c.Engine.Threshold <= 0 {
		errs = append(errs, errors.New("engine.threshold must be positive"))
	}
	if c.Engine.Keyword == "" {
		errs = append(errs, errors.New("engine.keyword is required"))
	}
	if err := c.LLM.Validate(); err != nil {
		errs = append(errs, err)
	}

	switch c.Sensor.Kind {
	case "vcnl4040", "virtual":
	default:
		errs = append(errs, fmt.Errorf("unknown sensor kind %q", c.Sensor.Kind))
	}

	switch c.Voice.Mode {
	case "mic":
		if c.Voice.WhisperModel == "" {
			errs = append(errs, errors.New("voice.whisper_model is required in mic mode"))
		}
		if c.Voice.DuckFactor < 0 || c.Voice.DuckFactor > 1 {
			errs = append(errs, fmt.Errorf("voice.duck_factor must be within [0, 1], got %g", c.Voice.DuckFactor))
		}
	case "clips":
		if c.Voice.ClipDir == "" {
			errs = append(errs, errors.New("voice.clip_dir is required in clips mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown voice mode %q", c.Voice.Mode))
	}

	switch c.Speech.Engine {
	case "espeak", "silent":
	default:
		errs = append(errs, fmt.Errorf("unknown speech engine %q", c.Speech.Engine))
	}

	if _, ok := LogLevels[c.Log]; !ok {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Log))
	}
	if c.Socket == "" {
		errs = append(errs, errors.New("socket path is required"))
	}
	return errors.Join(errs...)
}
