package progress

import "io"

// Tracker receives the running byte count of one transfer.
type Tracker interface {
	Update(current int64)
}

// Reporter tracks a single transfer from start to finish. CLI and GUI
// modes implement it with a terminal bar and bus events respectively.
type Reporter interface {
	Tracker
	Start(total int64, description string)
	Finish()
	Error(err error)
	SetDescription(desc string)
}

// FileBarHandle is one file's bar inside a multi-file upload.
type FileBarHandle interface {
	Tracker

	// UpdateProgress sets progress as a fraction from 0.0 to 1.0
	UpdateProgress(fraction float64)

	// SetRetry shows the retry counter on the bar
	SetRetry(count int)

	// Complete finishes the bar and prints a summary line
	Complete(documentID string, err error)
}

// ProgressUI owns the bars of a multi-file upload.
type ProgressUI interface {
	AddFileBar(localPath string, size int64) FileBarHandle

	// Wait blocks until all bars complete
	Wait()

	// Writer prints above the bars in terminal mode
	Writer() io.Writer

	IsTerminal() bool
}
