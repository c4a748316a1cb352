package models

import "time"

// UploadStatus is the state machine of an UploadSession:
// initiated → uploading → {completed | aborted}. The terminal states are
// immutable; re-completing or re-aborting is rejected.
type UploadStatus string

const (
	UploadInitiated UploadStatus = "initiated"
	UploadUploading UploadStatus = "uploading"
	UploadCompleted UploadStatus = "completed"
	UploadAborted   UploadStatus = "aborted"
)

// UploadSession tracks one file's in-progress chunked transfer into object
// storage. Exactly one session exists per file; the row is removed with the
// file (FK cascade).
type UploadSession struct {
	ID           string
	FileID       string
	OwnerID      string
	Status       UploadStatus
	TotalSize    int64
	UploadedSize int64 // cached view; the object store's part listing is authoritative
	MultipartID  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Terminal reports whether the session has reached a final state.
func (u *UploadSession) Terminal() bool {
	return u.Status == UploadCompleted || u.Status == UploadAborted
}
