// SPDX-License-Identifier: MIT
package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := GetLevel()
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(prev)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
		ok    bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"Warning", LevelWarn, true},
		{" error ", LevelError, true},
		{"fatal", LevelFatal, true},
		{"loud", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseLevel(tt.input)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseLevel(%q) = (%s, %v), want (%s, %v)", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelWarn)

	Debugf("hidden %d", 1)
	Infof("hidden %d", 2)
	Warnf("shown %d", 3)
	Errorf("shown %d", 4)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("messages below level were written: %q", out)
	}
	if !strings.Contains(out, `level=warning msg="shown 3"`) || !strings.Contains(out, `level=error msg="shown 4"`) {
		t.Errorf("expected warn and error lines, got %q", out)
	}
}

func TestNamedLogger(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelDebug)

	l := Named("tracker")
	if l.Name() != "tracker" {
		t.Errorf("Name() = %q, want tracker", l.Name())
	}
	l.Debugf("analysis %d", 7)

	line := buf.String()
	if !strings.Contains(line, `level=debug msg="analysis 7"`) || !strings.Contains(line, "component=tracker") {
		t.Errorf("unexpected output %q", line)
	}
}

func TestPackageLevelHasNoComponent(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelInfo)

	Infof("starting")
	if out := buf.String(); !strings.Contains(out, "msg=starting") || strings.Contains(out, "component=") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestSetLevelGatesBackend(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelError)

	Named("engine").Warnf("dropped")
	if buf.Len() != 0 {
		t.Errorf("warning written at error level: %q", buf.String())
	}
	if base.GetLevel().String() != "error" {
		t.Errorf("backend level = %s, want error", base.GetLevel())
	}
}

func TestEnabledNoAllocs(t *testing.T) {
	allocs := testing.AllocsPerRun(100, func() {
		_ = Enabled(LevelDebug)
	})
	if allocs > 0 {
		t.Errorf("Enabled allocated: %.1f", allocs)
	}
}
