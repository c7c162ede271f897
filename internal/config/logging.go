package config

import (
	"fmt"
	"slices"
	"strings"
)

var logLevels = []string{"trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"}

// LogConfig drives the process-wide zerolog logger. Service is stamped on
// every line so server and CLI logs can share a sink.
type LogConfig struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty      bool   `env:"LOG_PRETTY"`
	SampleEvery int    `env:"LOG_SAMPLE_EVERY"`
	File        string `env:"LOG_FILE"`
	MaxMB       int    `env:"LOG_MAX_MB" envDefault:"10"`
	Service     string `env:"LOG_SERVICE" envDefault:"chiptally"`
}

func LoadLog() (LogConfig, error) {
	return load[LogConfig]()
}

func (c LogConfig) validate() error {
	if !slices.Contains(logLevels, strings.ToLower(strings.TrimSpace(c.Level))) {
		return fmt.Errorf("unknown LOG_LEVEL %q", c.Level)
	}
	if c.SampleEvery < 0 {
		return fmt.Errorf("LOG_SAMPLE_EVERY must not be negative, got %d", c.SampleEvery)
	}
	if c.File != "" && c.MaxMB <= 0 {
		return fmt.Errorf("LOG_MAX_MB must be positive when LOG_FILE is set, got %d", c.MaxMB)
	}
	return nil
}
