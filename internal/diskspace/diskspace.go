// Package diskspace checks free space on the filesystem a file is about to
// be written to.
package diskspace

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rescale/record-files/internal/constants"
)

// DefaultSafetyMargin is the headroom kept on top of the bytes requested.
const DefaultSafetyMargin = 1.05

// InsufficientSpaceError indicates that there is not enough disk space available.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space for %s: need %.2f MB, have %.2f MB available",
		e.Path, float64(e.RequiredBytes)/constants.MiB, float64(e.AvailableBytes)/constants.MiB)
}

// CheckAvailableSpace fails with an InsufficientSpaceError when the
// filesystem holding targetPath has less than requiredBytes*safetyMargin
// free. targetPath itself need not exist. When free space cannot be
// determined the check passes and the write fails on its own.
func CheckAvailableSpace(targetPath string, requiredBytes int64, safetyMargin float64) error {
	if requiredBytes <= 0 {
		return nil
	}
	available, ok := availableBytes(filepath.Dir(targetPath))
	if !ok {
		return nil
	}
	required := int64(float64(requiredBytes) * safetyMargin)
	if available < required {
		return &InsufficientSpaceError{
			Path:           targetPath,
			RequiredBytes:  required,
			AvailableBytes: available,
		}
	}
	return nil
}

// GetAvailableSpace returns the free bytes for the filesystem holding path,
// or 0 when unknown.
func GetAvailableSpace(path string) int64 {
	available, _ := availableBytes(filepath.Dir(path))
	return available
}

// IsInsufficientSpaceError reports whether err wraps an InsufficientSpaceError.
func IsInsufficientSpaceError(err error) bool {
	var spaceErr *InsufficientSpaceError
	return errors.As(err, &spaceErr)
}
