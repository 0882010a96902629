package tutorapi

import (
	"bytes"
	"strings"
	"testing"
)

func TestSimpleLoggerLevels(t *testing.T) {
	logger := NewSimpleLogger()

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")
}

func TestSimpleLoggerWritesKeyValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSimpleLoggerTo(&buf)

	logger.Info("Scheduling retry", "attempt", 2, "endpoint", "/grades/")

	out := buf.String()
	for _, want := range []string{"Scheduling retry", "attempt", "/grades/"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in log output %q", want, out)
		}
	}
}

func TestDebugConfigs(t *testing.T) {
	def := DefaultDebugConfig()
	if def.Enabled {
		t.Error("Expected debug logging off by default")
	}
	if def.RequestIDGen == nil || def.RequestIDGen() == def.RequestIDGen() {
		t.Error("Expected unique request IDs by default")
	}

	verbose := VerboseDebugConfig()
	if !verbose.Enabled || !verbose.LogRequests || !verbose.LogRetries || !verbose.LogCache || !verbose.LogAuth {
		t.Errorf("Expected every category on, got %+v", verbose)
	}
}
