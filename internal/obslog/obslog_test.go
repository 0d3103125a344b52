package obslog

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "warn", Output: &buf})

	logger.Info("hidden")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record emitted at warn level: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Fatalf("warn record missing: %s", out)
	}
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "json", Output: &buf})

	logger.Info("hello", "k", "v")
	if !strings.Contains(buf.String(), `"k":"v"`) {
		t.Fatalf("not JSON output: %s", buf.String())
	}
}

func TestForComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := ForComponent(New(Config{Output: &buf}), "agent")

	logger.Info("hi")
	if !strings.Contains(buf.String(), "component=agent") {
		t.Fatalf("component attribute missing: %s", buf.String())
	}
}

func TestForComponentNilFallsBack(t *testing.T) {
	if logger := ForComponent(nil, "x"); logger == nil {
		t.Fatalf("nil logger not defaulted")
	}
}
