package config

import (
	"errors"
	"fmt"
	log "log/slog"
	"strconv"
	"strings"
	"time"

	"wes/internal/llm"
)

var LogLevels = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

const envPrefix = "WES_"

// ApplyEnv overrides cfg from WES_* variables and the vendor API key
// variables. getenv is usually os.Getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	flag := func(key string, dst *bool) {
		if v := getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	num(envPrefix+"THRESHOLD", &cfg.Engine.Threshold)
	str(envPrefix+"KEYWORD", &cfg.Engine.Keyword)
	dur(envPrefix+"LISTEN_TIMEOUT", &cfg.Engine.ListenTimeout)
	dur(envPrefix+"GENERATE_TIMEOUT", &cfg.Engine.GenerateTimeout)
	dur(envPrefix+"RETRIGGER_HOLDOFF", &cfg.Engine.RetriggerHoldoff)
	dur(envPrefix+"TICK", &cfg.Runner.Tick)
	dur(envPrefix+"ERROR_COOLDOWN", &cfg.Runner.ErrorCooldown)

	str(envPrefix+"LLM_PROVIDER", &cfg.LLM.Provider)
	if v := getenv(envPrefix + "LLM_MODEL"); v != "" {
		SetModel(&cfg.LLM, v)
	}
	str(envPrefix+"OLLAMA_URL", &cfg.LLM.Ollama.BaseURL)
	str(envPrefix+"OPENAI_BASE_URL", &cfg.LLM.OpenAI.BaseURL)
	str("OPENAI_API_KEY", &cfg.LLM.OpenAI.APIKey)
	str("ANTHROPIC_API_KEY", &cfg.LLM.Anthropic.APIKey)
	str("GOOGLE_API_KEY", &cfg.LLM.Gemini.APIKey)
	str("GEMINI_API_KEY", &cfg.LLM.Gemini.APIKey)

	str(envPrefix+"SENSOR", &cfg.Sensor.Kind)
	str(envPrefix+"I2C_BUS", &cfg.Sensor.Bus)
	str(envPrefix+"DISPLAY_URL", &cfg.Display.BusURL)
	str(envPrefix+"BACKLIGHT_PIN", &cfg.Display.BacklightPin)

	str(envPrefix+"VOICE_MODE", &cfg.Voice.Mode)
	str(envPrefix+"WHISPER_MODEL", &cfg.Voice.WhisperModel)
	str(envPrefix+"CLIP_DIR", &cfg.Voice.ClipDir)
	str(envPrefix+"CHIME", &cfg.Voice.Chime)
	flag(envPrefix+"DUCK", &cfg.Voice.Duck)
	str(envPrefix+"SPEECH", &cfg.Speech.Engine)

	flag(envPrefix+"STORE", &cfg.Store.Enabled)
	str(envPrefix+"STORE_PATH", &cfg.Store.Path)
	str(envPrefix+"PROXY", &cfg.Proxy)
	str(envPrefix+"SOCKET", &cfg.Socket)
	if v := getenv(envPrefix + "LOG"); v != "" {
		cfg.Log = strings.ToLower(v)
	}

	return errors.Join(errs...)
}

// SetModel sets the model of the selected provider.
func SetModel(c *llm.Config, model string) {
	switch c.Provider {
	case "openai":
		c.OpenAI.Model = model
	case "anthropic":
		c.Anthropic.Model = model
	case "gemini":
		c.Gemini.Model = model
	default:
		c.Ollama.Model = model
	}
}
