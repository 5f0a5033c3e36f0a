package validation

import (
	"path/filepath"
	"testing"
)

func TestValidateFilename(t *testing.T) {
	testCases := []struct {
		name        string
		filename    string
		expectValid bool
	}{
		{"simple", "report.pdf", true},
		{"with_dash", "q3-report.pdf", true},
		{"double_dot_inside", "data..v2.csv", true},
		{"spaces", "Quarterly Report.pdf", true},
		{"unicode", "résumé.pdf", true},
		{"empty", "", false},
		{"dot", ".", false},
		{"dot_dot", "..", false},
		{"unix_separator", "../etc/passwd", false},
		{"windows_separator", `..\windows\system32`, false},
		{"nested", "dir/file.txt", false},
		{"null_byte", "file\x00.txt", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFilename(tc.filename)
			if tc.expectValid && err != nil {
				t.Errorf("Expected %q to be valid, got: %v", tc.filename, err)
			}
			if !tc.expectValid && err == nil {
				t.Errorf("Expected %q to be rejected", tc.filename)
			}
		})
	}
}

func TestValidatePathInDirectory(t *testing.T) {
	base := t.TempDir()

	testCases := []struct {
		name        string
		path        string
		base        string
		expectValid bool
	}{
		{"relative_inside", "bundle.zip", base, true},
		{"nested_inside", filepath.Join("a", "b.txt"), base, true},
		{"absolute_inside", filepath.Join(base, "a.pdf"), base, true},
		{"base_itself", base, base, true},
		{"relative_escape", filepath.Join("..", "x"), base, false},
		{"cleaned_escape", filepath.Join("a", "..", "..", "x"), base, false},
		{"absolute_outside", filepath.Join(filepath.Dir(base), "x"), base, false},
		{"sibling_prefix", base + "-other", base, false},
		{"empty_path", "", base, false},
		{"empty_base", "a", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePathInDirectory(tc.path, tc.base)
			if tc.expectValid && err != nil {
				t.Errorf("Expected %q in %q to be valid, got: %v", tc.path, tc.base, err)
			}
			if !tc.expectValid && err == nil {
				t.Errorf("Expected %q in %q to be rejected", tc.path, tc.base)
			}
		})
	}
}
