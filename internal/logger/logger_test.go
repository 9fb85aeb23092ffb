package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLevelRejectsInvalid(t *testing.T) {
	if err := SetLevel("not-a-level"); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestSetLevelAndUseWriter(t *testing.T) {
	var buf bytes.Buffer
	UseWriter(&buf)
	if err := SetLevel("warn"); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	if Level() != "WARN" {
		t.Fatalf("expected level WARN, got %s", Level())
	}

	Debug("should not appear")
	Warn("should appear", "key", "value")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("debug message logged despite warn level: %s", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("expected warn message in output: %s", out)
	}

	// Restore default level for other tests in the package.
	_ = SetLevel("info")
}

func TestWithPeerAndFullType(t *testing.T) {
	var buf bytes.Buffer
	UseWriter(&buf)
	l := WithPeer(Logger(), "controller", "abc123")
	l = WithFullType(l, 3, 8)
	l.Info("test")

	out := buf.String()
	for _, want := range []string{"controller", "abc123", "\"msg_type\":3", "\"msg_subtype\":8"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got %s", want, out)
		}
	}
}
