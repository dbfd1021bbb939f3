package ringnet

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LogLevelWarn, "")
	l.Infof("quiet %d", 1)
	l.Debugf("quiet %d", 2)
	if buf.Len() != 0 {
		t.Fatalf("messages below the level were written: %q", buf.String())
	}
	l.Warnf("ring %s", "broken")
	if out := buf.String(); !strings.Contains(out, "WARN: ring broken") {
		t.Errorf("warning written as %q", out)
	}

	buf.Reset()
	l.SetLevel(LogLevelDebug)
	l.Debugf("loud")
	if !strings.Contains(buf.String(), "DEBUG: loud") {
		t.Errorf("debug written as %q", buf.String())
	}

	var nl *Logger
	nl.Errorf("nil logger")
	if nl.ForRing("lab", nil) != nil {
		t.Error("ForRing on a nil logger")
	}
}

func TestRingLoggerTagsLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LogLevelInfo, "").ForRing("lab", func() float64 { return 2.75 })
	l.Infof("token at %s", NodeName(3))
	if out := buf.String(); !strings.Contains(out, "INFO lab t=2.750: token at node4") {
		t.Errorf("ring line written as %q", out)
	}
}

func TestEngineLogsRingAndTime(t *testing.T) {
	evtMgr, re := newTestEngine(t, nil)
	var buf bytes.Buffer
	re.SetLogger(NewLogger(&buf, LogLevelInfo, ""))
	re.StartToken()
	at(evtMgr, 1.0, func() { re.StopToken() })
	evtMgr.Run(2.0)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("logged %q", lines)
	}
	name := re.Desc().Name
	if !strings.Contains(lines[0], "INFO "+name+" t=0.000: token circulation started at node1") {
		t.Errorf("start logged as %q", lines[0])
	}
	if !strings.Contains(lines[1], "INFO "+name+" t=1.000: token circulation stopped at node2") {
		t.Errorf("stop logged as %q", lines[1])
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LogLevelDebug},
		{" WARN ", LogLevelWarn},
		{"warning", LogLevelWarn},
		{"Error", LogLevelError},
		{"info", LogLevelInfo},
		{"verbose", LogLevelInfo},
	}
	for _, tc := range tests {
		if got := ParseLogLevel(tc.in); got != tc.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
