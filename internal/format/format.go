// Package format renders raw file metadata for display.
package format

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rescale/record-files/internal/constants"
)

// DateLayout is "MM/DD/YYYY, H:MM AM|PM" with an unpadded 12-hour clock.
const DateLayout = "01/02/2006, 3:04 PM"

// FormatContentSize renders a byte count as Bytes, KB, MB or GB.
// Values from 1 KB up are rounded half-up to two decimals.
func FormatContentSize(bytes int64) string {
	switch {
	case bytes < constants.KiB:
		return fmt.Sprintf("%d Bytes", bytes)
	case bytes < constants.MiB:
		return scaled(float64(bytes)/constants.KiB, "KB")
	case bytes < constants.GiB:
		return scaled(float64(bytes)/constants.KiB/constants.KiB, "MB")
	default:
		return scaled(float64(bytes)/constants.KiB/constants.KiB/constants.KiB, "GB")
	}
}

func scaled(v float64, unit string) string {
	rounded := math.Floor(v*100+0.5) / 100
	return strconv.FormatFloat(rounded, 'f', 2, 64) + " " + unit
}

// FormatDate renders t in the local time zone.
func FormatDate(t time.Time) string {
	return FormatDateIn(t, time.Local)
}

// FormatDateIn renders t in loc. A nil loc means local time. The zero time
// (a missing date) renders as "".
func FormatDateIn(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DateLayout)
}
