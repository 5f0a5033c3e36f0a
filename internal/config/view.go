package config

import (
	"errors"
	"strings"

	"github.com/rescale/record-files/internal/constants"
)

// ViewConfig is the flag set that controls which columns, actions and
// features the file manager exposes. It is fixed once a FileManager is
// activated.
type ViewConfig struct {
	RecordID      string `ini:"record_id" json:"recordId"`
	ObjectAPIName string `ini:"object_api_name" json:"objectApiName"`
	Title         string `ini:"title" json:"title"`

	AllowDelete         bool `ini:"allow_delete" json:"allowDelete"`
	AllowDownload       bool `ini:"allow_download" json:"allowDownload"`
	AllowUpload         bool `ini:"allow_upload" json:"allowUpload"`
	AllowPreview        bool `ini:"allow_preview" json:"allowPreview"`
	AllowFileEditDetail bool `ini:"allow_file_edit_detail" json:"allowFileEditDetail"`
	AllowRemove         bool `ini:"allow_remove" json:"allowRemove"`

	// IsCommunity marks a restricted display context: no record-page links
	IsCommunity bool `ini:"is_community" json:"isCommunity"`

	ShowOwnerName    bool `ini:"show_owner_name" json:"showOwnerName"`
	ShowFileType     bool `ini:"show_file_type" json:"showFileType"`
	ShowFileSize     bool `ini:"show_file_size" json:"showFileSize"`
	ShowLastModified bool `ini:"show_last_modified" json:"showLastModified"`
	ShowRefreshIcon  bool `ini:"show_refresh_icon" json:"showRefreshIcon"`

	// Multiple allows selecting more than one file per upload
	Multiple bool `ini:"multiple" json:"multiple"`

	// ShowNumberOfRecords caps the rows in the compact list. 0 means no cap.
	ShowNumberOfRecords int `ini:"show_number_of_records" json:"showNumberOfRecords"`

	// AcceptedFormats holds dot-prefixed extensions offered by upload pickers
	AcceptedFormats []string `ini:"-" json:"acceptedFormats"`
}

// View validation errors
var (
	ErrMissingRecordID = errors.New("record_id is required")
)

// NewViewConfig returns a ViewConfig with every feature off and default
// title, row cap and accepted formats.
func NewViewConfig() ViewConfig {
	return ViewConfig{
		Title:               constants.DefaultTitle,
		ShowNumberOfRecords: constants.DefaultShowNumberOfRecords,
		AcceptedFormats:     ParseAcceptedFormats(""),
	}
}

// ParseAcceptedFormats splits a comma-separated extension list into
// dot-prefixed extensions. Blank input yields the default {.pdf, .png}.
// Whitespace and leading dots are stripped, duplicates are dropped.
func ParseAcceptedFormats(s string) []string {
	if strings.TrimSpace(s) == "" {
		s = constants.DefaultAcceptedFormats
	}

	seen := make(map[string]bool)
	formats := make([]string, 0, 4)
	for _, part := range strings.Split(s, ",") {
		ext := strings.TrimLeft(strings.TrimSpace(part), ".")
		if ext == "" {
			continue
		}
		ext = "." + ext
		if seen[ext] {
			continue
		}
		seen[ext] = true
		formats = append(formats, ext)
	}
	if len(formats) == 0 {
		return ParseAcceptedFormats("")
	}
	return formats
}

// Normalized fills zero values with defaults and returns a copy whose
// slices are not shared with v.
func (v ViewConfig) Normalized() ViewConfig {
	if strings.TrimSpace(v.Title) == "" {
		v.Title = constants.DefaultTitle
	}
	if v.ShowNumberOfRecords < 0 {
		v.ShowNumberOfRecords = constants.DefaultShowNumberOfRecords
	}
	if len(v.AcceptedFormats) == 0 {
		v.AcceptedFormats = ParseAcceptedFormats("")
	} else {
		v.AcceptedFormats = append([]string(nil), v.AcceptedFormats...)
	}
	return v
}

// Validate checks that the record context is present.
func (v ViewConfig) Validate() error {
	if strings.TrimSpace(v.RecordID) == "" {
		return ErrMissingRecordID
	}
	return nil
}
