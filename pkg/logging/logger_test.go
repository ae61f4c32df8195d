package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Expected default pretty to be false")
	}
	if cfg.RunID != "" {
		t.Errorf("Expected no default run id, got %q", cfg.RunID)
	}
}

func TestSetup(t *testing.T) {
	runID := NewRunID()

	tests := []struct {
		name        string
		config      Config
		component   string
		emit        func(l zerolog.Logger)
		contains    []string
		notContains []string
		json        bool
	}{
		{
			name:   "info_level",
			config: Config{Level: LevelInfo},
			emit: func(l zerolog.Logger) {
				l.Debug().Msg("page fetched")
				l.Info().Msg("year fetched")
			},
			contains:    []string{"year fetched"},
			notContains: []string{"page fetched"},
			json:        true,
		},
		{
			name:     "debug_level",
			config:   Config{Level: LevelDebug},
			emit:     func(l zerolog.Logger) { l.Debug().Msg("rate budget wait") },
			contains: []string{"rate budget wait"},
			json:     true,
		},
		{
			name:   "warn_level",
			config: Config{Level: LevelWarn},
			emit: func(l zerolog.Logger) {
				l.Debug().Msg("debug message")
				l.Info().Msg("info message")
				l.Warn().Msg("page aborted")
				l.Error().Msg("run failed")
			},
			contains:    []string{"page aborted", "run failed"},
			notContains: []string{"debug message", "info message"},
			json:        true,
		},
		{
			name:   "error_level",
			config: Config{Level: LevelError},
			emit: func(l zerolog.Logger) {
				l.Warn().Msg("retry exhausted")
				l.Error().Msg("run failed")
			},
			contains:    []string{"run failed"},
			notContains: []string{"retry exhausted"},
			json:        true,
		},
		{
			name:      "run_id_and_component",
			config:    Config{Level: LevelInfo, RunID: runID},
			component: "discover",
			emit:      func(l zerolog.Logger) { l.Info().Int("year", 2020).Msg("Fetched movies of year 2020") },
			contains: []string{
				`"run_id":"` + runID + `"`,
				`"component":"discover"`,
				`"year":2020`,
			},
			json: true,
		},
		{
			name:        "no_run_id",
			config:      Config{Level: LevelInfo},
			emit:        func(l zerolog.Logger) { l.Info().Msg("no id") },
			contains:    []string{"no id"},
			notContains: []string{"run_id"},
			json:        true,
		},
		{
			name:     "pretty",
			config:   Config{Level: LevelInfo, Pretty: true},
			emit:     func(l zerolog.Logger) { l.Info().Msg("pretty message") },
			contains: []string{"pretty message"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.config.Output = buf

			logger := Setup(tt.config)
			if tt.component != "" {
				logger = NewLogger(tt.component)
			}
			tt.emit(logger)

			output := buf.String()
			for _, want := range tt.contains {
				if !strings.Contains(output, want) {
					t.Errorf("Expected output to contain %q, got %q", want, output)
				}
			}
			for _, unwanted := range tt.notContains {
				if strings.Contains(output, unwanted) {
					t.Errorf("Expected output not to contain %q, got %q", unwanted, output)
				}
			}
			if isJSON := strings.HasPrefix(output, "{"); isJSON != tt.json {
				t.Errorf("JSON output = %v, want %v: %q", isJSON, tt.json, output)
			}
		})
	}
}

func TestSetup_NilOutput(t *testing.T) {
	// falls back to stderr
	logger := Setup(Config{Level: LevelError})
	logger.Debug().Msg("filtered")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel}, // Should default to Info
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == b {
		t.Error("Expected distinct run ids")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("NewRunID() = %q is not a uuid: %v", a, err)
	}
}
