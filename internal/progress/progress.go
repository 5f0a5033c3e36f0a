// Package progress reports transfer progress as terminal bars in CLI mode
// and as bus events in GUI and server mode.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/rescale/record-files/internal/events"
)

// CLIProgress draws a single transfer as a progress bar.
type CLIProgress struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

// NewCLIProgress creates a reporter that draws on stderr.
func NewCLIProgress() *CLIProgress {
	return NewCLIProgressTo(os.Stderr)
}

// NewCLIProgressTo creates a reporter that draws on out.
func NewCLIProgressTo(out io.Writer) *CLIProgress {
	return &CLIProgress{out: out}
}

// Start creates the bar. A negative total renders a spinner.
func (p *CLIProgress) Start(total int64, description string) {
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.out, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func (p *CLIProgress) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

func (p *CLIProgress) Error(err error) {
	if err != nil {
		fmt.Fprintf(p.out, "\nError: %v\n", err)
	}
}

func (p *CLIProgress) SetDescription(desc string) {
	if p.bar != nil {
		p.bar.Describe(desc)
	}
}

// GUIProgress publishes transfer events for one task on the bus.
type GUIProgress struct {
	eventBus *events.EventBus
	taskID   string
	taskType string

	mu       sync.Mutex
	name     string
	total    int64
	current  int64
	lastSent float64
}

// minProgressStep is the smallest fraction change worth an event.
const minProgressStep = 0.01

// NewGUIProgress creates a reporter for taskID. taskType is "upload" or
// "download".
func NewGUIProgress(eventBus *events.EventBus, taskID, taskType string) *GUIProgress {
	return &GUIProgress{
		eventBus: eventBus,
		taskID:   taskID,
		taskType: taskType,
	}
}

func (p *GUIProgress) Start(total int64, description string) {
	p.mu.Lock()
	p.total = total
	p.current = 0
	p.lastSent = 0
	p.name = description
	p.mu.Unlock()

	p.eventBus.PublishTransfer(events.EventTransferStarted, p.taskID, p.taskType, description, total, 0, nil)
}

func (p *GUIProgress) Update(current int64) {
	p.mu.Lock()
	p.current = current
	name, total, fraction := p.name, p.total, p.fractionLocked()
	if fraction-p.lastSent < minProgressStep && fraction < 1 {
		p.mu.Unlock()
		return
	}
	p.lastSent = fraction
	p.mu.Unlock()

	p.eventBus.PublishTransfer(events.EventTransferProgress, p.taskID, p.taskType, name, total, fraction, nil)
}

func (p *GUIProgress) Finish() {
	p.mu.Lock()
	name, total := p.name, p.total
	p.mu.Unlock()

	p.eventBus.PublishTransfer(events.EventTransferCompleted, p.taskID, p.taskType, name, total, 1, nil)
}

func (p *GUIProgress) Error(err error) {
	if err == nil {
		return
	}
	p.mu.Lock()
	name, total, fraction := p.name, p.total, p.fractionLocked()
	p.mu.Unlock()

	p.eventBus.PublishTransfer(events.EventTransferFailed, p.taskID, p.taskType, name, total, fraction, err)
}

// SetDescription renames the task. The new name is carried by the next
// progress event.
func (p *GUIProgress) SetDescription(desc string) {
	p.mu.Lock()
	p.name = desc
	p.mu.Unlock()
}

func (p *GUIProgress) fractionLocked() float64 {
	if p.total <= 0 {
		return 0
	}
	f := float64(p.current) / float64(p.total)
	if f > 1 {
		f = 1
	}
	return f
}

// NoOpProgress discards all progress, for background or quiet runs.
type NoOpProgress struct{}

func NewNoOpProgress() *NoOpProgress {
	return &NoOpProgress{}
}

func (p *NoOpProgress) Start(total int64, description string) {}
func (p *NoOpProgress) Update(current int64)                  {}
func (p *NoOpProgress) Finish()                               {}
func (p *NoOpProgress) Error(err error)                       {}
func (p *NoOpProgress) SetDescription(desc string)            {}

// ProgressReader reports the running byte count of reads to a Tracker.
type ProgressReader struct {
	reader  io.Reader
	tracker Tracker
	current int64
}

func NewProgressReader(reader io.Reader, tracker Tracker) *ProgressReader {
	return &ProgressReader{reader: reader, tracker: tracker}
}

func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.current += int64(n)
		pr.tracker.Update(pr.current)
	}
	return n, err
}

// BytesRead returns the total bytes read so far.
func (pr *ProgressReader) BytesRead() int64 {
	return pr.current
}
