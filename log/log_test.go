package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zap.DebugLevel, "": zap.InfoLevel, "INFO": zap.InfoLevel,
		"warning": zap.WarnLevel, " error ": zap.ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "mini-thrift.log")
	l, err := New(Config{Level: "debug", Format: "json", Outputs: []string{path}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	l.Debug("hello", zap.String("method", "echo"))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) || !strings.Contains(string(data), `"method":"echo"`) {
		t.Errorf("unexpected log output: %s", data)
	}
}

func TestNewWithRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotated.log")
	l, err := New(Config{Level: "info", Format: "console", Outputs: []string{path}, Rotation: Rotation{Enable: true}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	l.Info("rotated")
	_ = l.Sync()
	if data, err := os.ReadFile(path); err != nil || !strings.Contains(string(data), "rotated") {
		t.Fatalf("rotated file: %q, %v", data, err)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestReplaceGlobals(t *testing.T) {
	nop := zap.NewNop()
	restore := ReplaceGlobals(nop)
	if L() != nop {
		t.Fatal("ReplaceGlobals did not install the logger")
	}
	restore()
	if L() == nop {
		t.Fatal("restore did not reinstall the previous logger")
	}
}
