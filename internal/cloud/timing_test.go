package cloud

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestTimingEnabled(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", false},
		{"0", false},
		{"true", false},
		{"1", true},
	}
	for _, tt := range tests {
		t.Setenv("RECORD_FILES_TIMING", tt.value)
		if got := TimingEnabled(); got != tt.want {
			t.Errorf("TimingEnabled() with %q = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestTimerStopLogsOnce(t *testing.T) {
	t.Setenv("RECORD_FILES_TIMING", "1")
	var buf bytes.Buffer

	timer := StartTimer(&buf, "phase")
	time.Sleep(5 * time.Millisecond)
	if d := timer.Stop(); d < 5*time.Millisecond {
		t.Errorf("Stop() = %v, want >= 5ms", d)
	}
	timer.Stop()

	if n := strings.Count(buf.String(), "[TIMING] phase:"); n != 1 {
		t.Errorf("expected one timing line, got %d:\n%s", n, buf.String())
	}
}

func TestTimerConcurrentStop(t *testing.T) {
	t.Setenv("RECORD_FILES_TIMING", "1")
	var buf bytes.Buffer
	var mu sync.Mutex
	timer := StartTimer(&lockedWriter{w: &buf, mu: &mu}, "concurrent")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			timer.Stop()
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if n := strings.Count(buf.String(), "[TIMING]"); n != 1 {
		t.Errorf("expected one timing line, got %d", n)
	}
}

func TestTimerStopWithThroughput(t *testing.T) {
	t.Setenv("RECORD_FILES_TIMING", "1")
	var buf bytes.Buffer

	StartTimer(&buf, "upload").StopWithThroughput(2 * 1024 * 1024)

	if !strings.Contains(buf.String(), "total 2.00 MB at ") {
		t.Errorf("missing throughput in %q", buf.String())
	}
}

func TestTimerDisabled(t *testing.T) {
	t.Setenv("RECORD_FILES_TIMING", "")
	var buf bytes.Buffer

	StartTimer(&buf, "quiet").StopWithThroughput(100)
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestFormatSpeed(t *testing.T) {
	if got := FormatSpeed(2048, time.Second); got != "2.00 KB/s" {
		t.Errorf("FormatSpeed = %q", got)
	}
	if got := FormatSpeed(100, 0); got != "0 B/s" {
		t.Errorf("FormatSpeed with zero elapsed = %q", got)
	}
}

type lockedWriter struct {
	w  *bytes.Buffer
	mu *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
