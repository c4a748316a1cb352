// Package objstore adapts the external chunked-object protocol: multipart
// session control, part listings, time-limited upload/download URLs and
// streamed retrieval. The metadata layer never talks to object storage
// directly; everything goes through Store.
package objstore

import (
	"context"
	"io"
)

// Part is one chunk the external store has actually received.
type Part struct {
	Number int32
	Size   int64
}

// CompletedPart identifies an uploaded chunk in a completion request.
// Parts must be submitted in strictly ascending order.
type CompletedPart struct {
	Number int32
	ETag   string
}

// PresignedPart pairs a 1-based part number with its upload URL.
type PresignedPart struct {
	PartNumber int32
	URL        string
}

// Store is the capability contract for the external object store. All calls
// are bounded by the adapter's configured timeout and report transport
// failures as common.ErrUnavailable.
type Store interface {
	// CreateMultipart opens a multipart session for key and returns the
	// external session id.
	CreateMultipart(ctx context.Context, key string) (string, error)

	// CompleteMultipart submits the final part list for the session.
	CompleteMultipart(ctx context.Context, key, multipartID string, parts []CompletedPart) error

	// AbortMultipart discards the session and any uploaded parts.
	AbortMultipart(ctx context.Context, key, multipartID string) error

	// ListParts returns the parts received so far, with sizes.
	ListParts(ctx context.Context, key, multipartID string) ([]Part, error)

	// PresignUpload issues a time-limited single-PUT upload URL.
	PresignUpload(ctx context.Context, key string) (string, error)

	// PresignDownload issues a time-limited download URL.
	PresignDownload(ctx context.Context, key string) (string, error)

	// PresignUploadPart issues a time-limited upload URL for one part of a
	// multipart session.
	PresignUploadPart(ctx context.Context, key, multipartID string, partNumber int32) (string, error)

	// GetObject opens a streamed read of the object's bytes. The caller owns
	// the returned body and must close it.
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
}
