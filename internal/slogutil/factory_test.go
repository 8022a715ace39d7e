package slogutil

import (
	"log/slog"
	"testing"

	"nixlsp/internal/config"
)

func TestEffectiveLevel(t *testing.T) {
	debug := slog.LevelDebug
	tests := []struct {
		name      string
		logging   config.LoggingConfig
		cli       *slog.Level
		subsystem string
		want      slog.Level
	}{
		{"global level", config.LoggingConfig{Level: "warn"}, nil, SubsystemServer, slog.LevelWarn},
		{"subsystem override", config.LoggingConfig{Level: "warn", Server: "debug"}, nil, SubsystemServer, slog.LevelDebug},
		{"other subsystem keeps global", config.LoggingConfig{Level: "warn", Server: "debug"}, nil, SubsystemIndex, slog.LevelWarn},
		{"index override", config.LoggingConfig{Level: "info", Index: "error"}, nil, SubsystemIndex, slog.LevelError},
		{"cli wins", config.LoggingConfig{Level: "error", Index: "error"}, &debug, SubsystemIndex, slog.LevelDebug},
		{"empty config", config.LoggingConfig{}, nil, SubsystemServer, slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Logging = tt.logging
			f := NewLoggerFactory(cfg, tt.cli)
			if got := f.EffectiveLevel(tt.subsystem); got != tt.want {
				t.Errorf("EffectiveLevel(%s) = %v, want %v", tt.subsystem, got, tt.want)
			}
		})
	}
}

func TestNilConfigUsesDefaults(t *testing.T) {
	f := NewLoggerFactory(nil, nil)
	if got := f.EffectiveLevel(SubsystemServer); got != slog.LevelInfo {
		t.Errorf("EffectiveLevel() = %v, want info", got)
	}
	if err := f.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
