package logger

import (
	"context"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARNING": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}
	cfg.SetDefaults()

	if cfg.Level != "info" || cfg.Format != FormatJSON {
		t.Errorf("SetDefaults() = %+v", cfg)
	}
	if len(cfg.OutputPaths) != 1 || cfg.OutputPaths[0] != "stdout" {
		t.Errorf("OutputPaths = %v, want [stdout]", cfg.OutputPaths)
	}
}

func TestNew_Console(t *testing.T) {
	t.Parallel()

	log, err := New(Config{Level: "debug", Format: FormatConsole, OutputPaths: []string{"stderr"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	log.With(Component("test")).Debug("hello", MappingID(7), CommandID("abc"))
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext() returned nil without a stored logger")
	}

	stored := NewNop()
	ctx := WithContext(context.Background(), stored)
	if FromContext(ctx) != stored {
		t.Error("FromContext() did not return the stored logger")
	}
}
