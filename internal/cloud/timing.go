package cloud

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rescale/record-files/internal/format"
)

// TimingEnabled reports whether RECORD_FILES_TIMING=1 is set. Timing lines
// help diagnose slow uploads without turning on debug logging.
func TimingEnabled() bool {
	return os.Getenv("RECORD_FILES_TIMING") == "1"
}

// Timer measures one upload phase. Output format:
//
//	[TIMING] S3 upload 001R/report.pdf: 1.2s (total 2 MB at 1.7 MB/s)
type Timer struct {
	name    string
	start   time.Time
	w       io.Writer
	stopped atomic.Bool
}

// StartTimer starts a timer that writes to w, or stderr when w is nil.
func StartTimer(w io.Writer, name string) *Timer {
	if w == nil {
		w = os.Stderr
	}
	return &Timer{name: name, start: time.Now(), w: w}
}

// Stop logs and returns the elapsed time. Only the first call logs.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.stopped.CompareAndSwap(false, true) && TimingEnabled() {
		fmt.Fprintf(t.w, "[TIMING] %s: %v\n", t.name, elapsed)
	}
	return elapsed
}

// StopWithThroughput is Stop with the transferred size and speed appended.
func (t *Timer) StopWithThroughput(bytes int64) time.Duration {
	elapsed := time.Since(t.start)
	if t.stopped.CompareAndSwap(false, true) && TimingEnabled() {
		fmt.Fprintf(t.w, "[TIMING] %s: %v (total %s at %s)\n",
			t.name, elapsed, format.FormatContentSize(bytes), FormatSpeed(bytes, elapsed))
	}
	return elapsed
}

// FormatSpeed renders bytes over elapsed as a per-second size.
func FormatSpeed(bytes int64, elapsed time.Duration) string {
	if elapsed <= 0 {
		return "0 B/s"
	}
	perSec := int64(float64(bytes) / elapsed.Seconds())
	return format.FormatContentSize(perSec) + "/s"
}
