package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newTestLogger(t *testing.T) (*Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		NameKey:        "logger",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(buf),
		zap.NewAtomicLevelAt(zapcore.DebugLevel),
	)
	return FromZap(zap.New(core)), buf
}

func TestLoggerLevels(t *testing.T) {
	testLogger, buf := newTestLogger(t)
	defer testLogger.Sync()

	testLogger.Debug("debug message")
	testLogger.Info("info message")
	testLogger.Warn("warning message")
	testLogger.Error("error message")

	output := buf.String()
	for _, want := range []string{
		"debug message", "info message", "warning message", "error message",
		`"level":"debug"`, `"level":"info"`, `"level":"warn"`, `"level":"error"`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in log output, got %s", want, output)
		}
	}
}

func TestLoggerWithFields(t *testing.T) {
	testLogger, buf := newTestLogger(t)

	testLogger.Info("command sent", Fields{
		"id":     42,
		"method": "Page.navigate",
	})

	output := buf.String()
	if !strings.Contains(output, `"id":42`) {
		t.Error("id field not found in logs")
	}
	if !strings.Contains(output, `"method":"Page.navigate"`) {
		t.Error("method field not found in logs")
	}
}

func TestLoggerErrorField(t *testing.T) {
	testLogger, buf := newTestLogger(t)

	testLogger.Warn("handler failed", Fields{"error": errors.New("boom")})

	if !strings.Contains(buf.String(), `"error":"boom"`) {
		t.Errorf("error field not encoded as message, got %s", buf.String())
	}
}

func TestLoggerWithAndNamed(t *testing.T) {
	testLogger, buf := newTestLogger(t)

	child := testLogger.With(Fields{"client_id": "c-1"}).Named("demux")
	child.Info("reader started")

	output := buf.String()
	if !strings.Contains(output, `"client_id":"c-1"`) {
		t.Error("persistent field not found in logs")
	}
	if !strings.Contains(output, `"logger":"demux"`) {
		t.Error("logger name not found in logs")
	}

	if same := testLogger.With(nil); same != testLogger {
		t.Error("With(nil) should return the receiver")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{in: "debug", want: DebugLevel},
		{in: " WARN ", want: WarnLevel},
		{in: "", want: InfoLevel},
		{in: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseLevel(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestNewWithConfig(t *testing.T) {
	logger, err := New(Config{
		Level:         DebugLevel,
		OutputPaths:   []string{"stderr"},
		InitialFields: Fields{"component": "test"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if logger == nil {
		t.Fatal("New() returned nil logger")
	}

	NewNop().Info("discarded")
}
