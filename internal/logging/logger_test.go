package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"debug", "DEBUG", false},
		{"INFO", "INFO", false},
		{"warning", "WARN", false},
		{"error", "ERROR", false},
		{"", "INFO", false},
		{"verbose", "INFO", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got.String() != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoggerSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf, Enabled: true})

	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug record written at info level: %q", buf.String())
	}

	l.SetLevel(LevelDebug)
	child := l.With("session_id", "abc")
	child.Debug("shown")
	if !strings.Contains(buf.String(), "shown") || !strings.Contains(buf.String(), "session_id=abc") {
		t.Errorf("expected debug record with session_id, got %q", buf.String())
	}
}

func TestDisabledLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelDebug, Output: &buf, Enabled: false})
	l.Error("nothing")
	if buf.Len() != 0 {
		t.Errorf("disabled logger wrote %q", buf.String())
	}
}

func TestSetup(t *testing.T) {
	prev := Global()
	defer SetGlobal(prev)

	dir := t.TempDir()
	r, err := Setup(dir, true, false)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	defer r.Close()

	if _, err := os.Stat(r.FilePath()); err != nil {
		t.Errorf("log file not created: %v", err)
	}
	if Global().Level() != LevelDebug {
		t.Errorf("expected debug level after verbose Setup, got %v", Global().Level())
	}

	none, err := Setup(dir, false, true)
	if err != nil || none != nil {
		t.Errorf("Setup(noLog) = %v, %v; want nil, nil", none, err)
	}
	if none.FilePath() != "" {
		t.Error("nil RunLog should report empty path")
	}
}
