package models

import "time"

// FileInfo is one attached file as returned by the gateway
type FileInfo struct {
	FileID            string    `json:"fileId"`
	ContentDocumentID string    `json:"contentDocumentId"`
	FileName          string    `json:"fileName"`
	ContentSize       int64     `json:"contentSize"`
	FileType          string    `json:"fileType"`
	LastModifiedDate  time.Time `json:"lastModifiedDate"`
	OwnerID           string    `json:"ownerId"`
	OwnerName         string    `json:"ownerName"`
}

// FileRecord is a FileInfo decorated with display fields at load time.
// Derived fields are never sent back to the gateway.
type FileRecord struct {
	FileInfo

	FileSize                  string `json:"fileSize"`
	FormattedLastModifiedDate string `json:"formattedLastModifiedDate"`
	ViewURL                   string `json:"viewUrl"`
	OwnerURL                  string `json:"ownerUrl"`
}

// Ref returns the row reference used for selection and row actions.
func (r FileRecord) Ref() RowRef {
	return RowRef{FileID: r.FileID, ContentDocumentID: r.ContentDocumentID}
}

// Field returns the display value for a column field name, or "" when unknown.
func (r FileRecord) Field(name string) string {
	switch name {
	case "fileId":
		return r.FileID
	case "contentDocumentId":
		return r.ContentDocumentID
	case "fileName":
		return r.FileName
	case "fileType":
		return r.FileType
	case "fileSize":
		return r.FileSize
	case "formattedLastModifiedDate":
		return r.FormattedLastModifiedDate
	case "ownerId":
		return r.OwnerID
	case "ownerName":
		return r.OwnerName
	case "ownerUrl":
		return r.OwnerURL
	case "viewUrl":
		return r.ViewURL
	default:
		return ""
	}
}

// RowRef identifies a row by both of its ids
type RowRef struct {
	FileID            string `json:"fileId"`
	ContentDocumentID string `json:"contentDocumentId"`
}

// UploadedFile describes one file produced by a finished upload
type UploadedFile struct {
	Name             string `json:"name"`
	DocumentID       string `json:"documentId"`
	ContentVersionID string `json:"contentVersionId"`
}

// FileIDsRequest is the body of a delete call
type FileIDsRequest struct {
	FileIDs []string `json:"fileIds"`
}

// RecordRequest is the body of a list call
type RecordRequest struct {
	RecordID string `json:"recordId"`
}

// RemoveFileRequest is the body of a remove-from-record call
type RemoveFileRequest struct {
	FileID   string `json:"fileId"`
	RecordID string `json:"recordId"`
}
