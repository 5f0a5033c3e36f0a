package format

import (
	"testing"
	"time"
)

func TestFormatContentSize(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"zero", 0, "0 Bytes"},
		{"just below KB", 1023, "1023 Bytes"},
		{"exactly KB", 1024, "1.00 KB"},
		{"one and a half KB", 1536, "1.50 KB"},
		{"rounds down below half", 1029, "1.00 KB"},
		{"rounds half up", 1152, "1.13 KB"},
		{"two decimals", 1300, "1.27 KB"},
		{"just below MB", 1048575, "1024.00 KB"},
		{"exactly MB", 1048576, "1.00 MB"},
		{"2.5 MB", 2621440, "2.50 MB"},
		{"exactly GB", 1073741824, "1.00 GB"},
		{"beyond GB", 5 * 1073741824, "5.00 GB"},
		{"terabyte stays in GB", 1099511627776, "1024.00 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatContentSize(tt.bytes); got != tt.want {
				t.Errorf("FormatContentSize(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestFormatDateIn(t *testing.T) {
	loc := time.FixedZone("test", -5*3600)

	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"just after midnight", time.Date(2024, 1, 2, 0, 5, 0, 0, loc), "01/02/2024, 12:05 AM"},
		{"afternoon", time.Date(2024, 1, 2, 13, 30, 0, 0, loc), "01/02/2024, 1:30 PM"},
		{"noon", time.Date(2024, 7, 4, 12, 0, 0, 0, loc), "07/04/2024, 12:00 PM"},
		{"before noon", time.Date(2024, 12, 31, 11, 59, 0, 0, loc), "12/31/2024, 11:59 AM"},
		{"late evening", time.Date(2023, 10, 9, 23, 1, 0, 0, loc), "10/09/2023, 11:01 PM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDateIn(tt.t, loc); got != tt.want {
				t.Errorf("FormatDateIn() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatDateIn_ConvertsZone(t *testing.T) {
	// 05:05 UTC is 00:05 at UTC-5
	ts := time.Date(2024, 1, 2, 5, 5, 0, 0, time.UTC)
	loc := time.FixedZone("test", -5*3600)

	if got := FormatDateIn(ts, loc); got != "01/02/2024, 12:05 AM" {
		t.Errorf("FormatDateIn() = %q, want %q", got, "01/02/2024, 12:05 AM")
	}
}

func TestFormatDate_UsesLocalTime(t *testing.T) {
	ts := time.Date(2024, 1, 2, 13, 30, 0, 0, time.Local)
	if got := FormatDate(ts); got != "01/02/2024, 1:30 PM" {
		t.Errorf("FormatDate() = %q, want %q", got, "01/02/2024, 1:30 PM")
	}
}

func TestFormatDate_ZeroTime(t *testing.T) {
	if got := FormatDateIn(time.Time{}, time.UTC); got != "" {
		t.Errorf("FormatDateIn(zero) = %q, want empty", got)
	}
}
