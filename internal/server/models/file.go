// Package models defines the metadata records CloudVault keeps in Postgres:
// the file/folder hierarchy and the multipart upload sessions attached to it.
package models

import "time"

// NodeKind distinguishes files from folders.
type NodeKind string

const (
	KindFile   NodeKind = "file"
	KindFolder NodeKind = "folder"
)

// FileStatus is the lifecycle of a FileNode. Files start pending and become
// completed when their upload finishes; folders are completed at creation.
type FileStatus string

const (
	FilePending   FileStatus = "pending"
	FileCompleted FileStatus = "completed"
)

// FileNode is one file or folder in the hierarchy.
//
// For a given (owner, parent, name) triple at most one non-deleted node may
// exist. A folder never has a storage key; a file gets one at creation and it
// is never reused.
type FileNode struct {
	ID         string
	OwnerID    string
	ParentID   *string // nil = root
	Name       string
	Kind       NodeKind
	MimeType   *string // files only
	Size       int64   // 0 for folders
	Status     FileStatus
	StorageKey *string // files only
	IsDeleted  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsFolder reports whether the node is a folder.
func (n *FileNode) IsFolder() bool {
	return n.Kind == KindFolder
}

// DescendantFile is one file found under a subtree, with its path relative to
// the subtree root (names joined with '/', starting at the root's own name).
type DescendantFile struct {
	ID           string
	StorageKey   string
	RelativePath string
}
