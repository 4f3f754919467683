// Package bootstrap reads the environment and wires the rewrite endpoint
// for the Lambda and CLI binaries.
package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	defaultGeneratorTimeout = 10 * time.Second
)

type Config struct {
	ParamPrefix      string
	Provider         string
	GeneratorTimeout time.Duration
	RateTable        string
	LogLevel         slog.Level
}

// FromEnv builds a Config from lookup, typically os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	cfg := Config{
		ParamPrefix:      get("PARAM_PREFIX"),
		Provider:         strings.ToLower(get("GENERATOR_PROVIDER")),
		GeneratorTimeout: defaultGeneratorTimeout,
		RateTable:        get("RATE_TABLE"),
	}
	if cfg.ParamPrefix == "" {
		return Config{}, errors.New("bootstrap: PARAM_PREFIX is required")
	}
	switch cfg.Provider {
	case "":
		cfg.Provider = ProviderOpenAI
	case ProviderOpenAI, ProviderGemini:
	default:
		return Config{}, fmt.Errorf("bootstrap: unknown GENERATOR_PROVIDER %q", cfg.Provider)
	}
	if raw := get("GENERATOR_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("bootstrap: invalid GENERATOR_TIMEOUT %q", raw)
		}
		cfg.GeneratorTimeout = d
	}
	level, err := ParseLevel(get("LOG_LEVEL"))
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level
	return cfg, nil
}

// ParseLevel maps debug, info, warn and error to slog levels. Empty is info.
func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("bootstrap: invalid LOG_LEVEL %q", raw)
	}
}

// NewLogger returns a JSON logger writing to w.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
