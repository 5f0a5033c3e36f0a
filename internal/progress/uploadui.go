package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/rescale/record-files/internal/constants"
)

const updateInterval = 300 * time.Millisecond

// UploadUI manages concurrent upload bars with mpb. Without a terminal on
// stderr it prints one line per file start and finish instead.
type UploadUI struct {
	progress   *mpb.Progress
	isTerminal bool
	totalFiles int
	target     string
	out        io.Writer
	started    atomic.Int32
	completed  atomic.Int32
}

// FileBar is one file's upload bar.
type FileBar struct {
	bar        *mpb.Bar
	ui         *UploadUI
	index      int
	filepath   string
	size       int64
	retries    atomic.Int32
	startTime  time.Time
	mu         sync.Mutex
	lastUpdate time.Time
	lastBytes  int64
}

// NewUploadUI creates bars for totalFiles uploads into target, the record
// or bucket shown on each bar.
func NewUploadUI(totalFiles int, target string) *UploadUI {
	return newUploadUI(totalFiles, target, os.Stderr, os.Stdout)
}

func newUploadUI(totalFiles int, target string, barOut *os.File, out io.Writer) *UploadUI {
	isTerminal := term.IsTerminal(int(barOut.Fd()))

	var p *mpb.Progress
	if isTerminal {
		enableANSI(barOut)
		p = mpb.New(
			mpb.WithOutput(barOut),
			mpb.WithRefreshRate(updateInterval),
			mpb.WithWidth(100),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &UploadUI{
		progress:   p,
		isTerminal: isTerminal,
		totalFiles: totalFiles,
		target:     target,
		out:        out,
	}
}

// AddFileBar creates the bar for one file. Safe for concurrent use.
func (u *UploadUI) AddFileBar(localPath string, size int64) FileBarHandle {
	index := int(u.started.Add(1))
	source := truncatePath(localPath, 2)
	sizeMiB := float64(size) / constants.MiB

	fb := &FileBar{
		ui:         u,
		index:      index,
		filepath:   localPath,
		size:       size,
		startTime:  time.Now(),
		lastUpdate: time.Now(),
	}

	if u.isTerminal {
		fb.bar = u.progress.New(size,
			mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
			mpb.PrependDecorators(
				decor.Any(func(s decor.Statistics) string {
					label := fmt.Sprintf("[%d/%d] %s (%.1f MiB) → %s", index, u.totalFiles, source, sizeMiB, u.target)
					if retries := fb.retries.Load(); retries > 0 {
						return fmt.Sprintf("%s (retry %d)", label, retries)
					}
					return label
				}, decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
				decor.Name("  "),
				decor.Percentage(decor.WCSyncSpace),
				decor.Name("  "),
				decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 30, decor.WCSyncSpace),
				decor.Name("  "),
				decor.Name("ETA ", decor.WCSyncWidth),
				decor.EwmaETA(decor.ET_STYLE_GO, 30),
			),
			mpb.BarRemoveOnComplete(),
		)
	} else {
		fmt.Fprintf(u.out, "Uploading [%d/%d]: %s (%.1f MiB) → %s\n", index, u.totalFiles, source, sizeMiB, u.target)
	}

	return fb
}

// Update sets the number of bytes sent so far.
func (f *FileBar) Update(current int64) {
	if f.size <= 0 {
		return
	}
	f.UpdateProgress(float64(current) / float64(f.size))
}

// UpdateProgress moves the bar to fraction. Updates are throttled, but
// elapsed time is always fed to the EWMA so speed and ETA stay accurate.
func (f *FileBar) UpdateProgress(fraction float64) {
	if f.bar == nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(f.lastUpdate)
	if elapsed < updateInterval && fraction < 1 {
		return
	}

	current := int64(fraction * float64(f.size))
	f.bar.EwmaIncrBy(int(current-f.lastBytes), elapsed)
	f.lastBytes = current
	f.lastUpdate = now
}

// SetRetry shows the retry counter and restarts the bar from the last
// confirmed position.
func (f *FileBar) SetRetry(count int) {
	f.retries.Store(int32(count))
	if f.bar != nil && count > 0 {
		f.mu.Lock()
		f.bar.SetRefill(f.lastBytes)
		f.mu.Unlock()
	}
}

// Complete finishes the bar and prints a summary line above the bars.
func (f *FileBar) Complete(documentID string, err error) {
	elapsed := time.Since(f.startTime)
	source := truncatePath(f.filepath, 2)

	var msg string
	if err == nil {
		if f.bar != nil {
			f.bar.SetCurrent(f.size)
			f.bar.SetTotal(f.size, true)
		}
		speed := 0.0
		if secs := elapsed.Seconds(); secs > 0 {
			speed = float64(f.size) / secs / constants.MiB
		}
		msg = fmt.Sprintf("✓ %s → %s (document %s, %.1f MiB, %s, %.1f MiB/s)\n",
			source, f.ui.target, documentID, float64(f.size)/constants.MiB, elapsed.Round(time.Second), speed)
	} else {
		if f.bar != nil {
			f.bar.Abort(false)
		}
		msg = fmt.Sprintf("✗ %s → %s: %v (after %d retries)\n", source, f.ui.target, err, f.retries.Load())
	}

	_, _ = io.WriteString(f.ui.Writer(), msg)
	f.ui.completed.Add(1)
}

// Wait blocks until all progress bars complete.
func (u *UploadUI) Wait() {
	u.progress.Wait()
}

// Writer prints above the bars in terminal mode, else to the line output.
func (u *UploadUI) Writer() io.Writer {
	if u.isTerminal {
		return u.progress
	}
	return u.out
}

// IsTerminal reports whether bars are rendered.
func (u *UploadUI) IsTerminal() bool {
	return u.isTerminal
}

// Completed returns how many files have finished, successfully or not.
func (u *UploadUI) Completed() int {
	return int(u.completed.Load())
}

// truncatePath keeps the last maxComponents components of path.
// truncatePath("/a/b/c/d/file.txt", 3) is "…/c/d/file.txt".
func truncatePath(path string, maxComponents int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= maxComponents {
		return filepath.Base(path)
	}
	return "…/" + strings.Join(parts[len(parts)-maxComponents:], "/")
}
