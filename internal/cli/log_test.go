package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/domainstack/pkg/observability"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		logFunc func(*log.Logger)
		wantLog bool
	}{
		{"info at info level", log.InfoLevel, func(l *log.Logger) { l.Info("test") }, true},
		{"debug at info level", log.InfoLevel, func(l *log.Logger) { l.Debug("test") }, false},
		{"debug at debug level", log.DebugLevel, func(l *log.Logger) { l.Debug("test") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFunc(newLogger(&buf, tt.level))
			if got := buf.Len() > 0; got != tt.wantLog {
				t.Errorf("got log output = %v, want %v", got, tt.wantLog)
			}
		})
	}
}

func TestTimed(t *testing.T) {
	var buf bytes.Buffer
	done := timed(newLogger(&buf, log.InfoLevel), "sampled description")
	time.Sleep(5 * time.Millisecond)
	done("layers", 4)

	out := buf.String()
	for _, want := range []string{"sampled description", "layers=4", "duration="} {
		if !strings.Contains(out, want) {
			t.Errorf("timed output %q missing %q", out, want)
		}
	}
}

func TestSetLogLevelInstallsHooks(t *testing.T) {
	t.Cleanup(observability.Reset)

	var buf bytes.Buffer
	c := New(&buf, LogInfo)
	c.SetLogLevel(LogInfo)
	observability.Pipeline().OnAlignStart(context.Background(), "reference", 3)
	if buf.Len() != 0 {
		t.Errorf("hooks installed at info level: %q", buf.String())
	}

	c.SetLogLevel(LogDebug)
	observability.Pipeline().OnAlignStart(context.Background(), "bounds", 3)
	if !strings.Contains(buf.String(), "bounds") {
		t.Errorf("debug level should log pipeline events, got %q", buf.String())
	}
}
