// Package navigation builds host URLs and page references for files and
// records, and dispatches navigation requests to whichever adapter renders
// them.
package navigation

import (
	"strings"

	"github.com/rescale/record-files/internal/constants"
)

// ViewURL is the record page of a file's metadata record.
func ViewURL(contentDocumentID string) string {
	return constants.ContentDocumentViewPrefix + contentDocumentID + "/view"
}

// RecordURL is the record page of any record id.
func RecordURL(recordID string) string {
	return constants.RecordPagePrefix + recordID + "/view"
}

// OwnerURL links to the owner's record page, or "" in community mode.
func OwnerURL(ownerID string, community bool) string {
	if community || ownerID == "" {
		return ""
	}
	return RecordURL(ownerID)
}

// RecordRelatedListURL is the "view all" page for a record's attached files.
// It is "" when either part is missing.
func RecordRelatedListURL(objectAPIName, recordID string) string {
	if objectAPIName == "" || recordID == "" {
		return ""
	}
	return constants.RecordPagePrefix + objectAPIName + "/" + recordID + "/related/" + constants.RelatedFilesListName + "/view"
}

// DownloadPath addresses one or more file versions for download.
func DownloadPath(fileIDs []string) string {
	return constants.DownloadPathPrefix + strings.Join(fileIDs, "/")
}
