// Package uploads persists multipart upload sessions.
package uploads

import (
	"context"

	"github.com/mpetrovs/cloudvault/internal/server/models"
)

// Repository is the metadata-store contract for upload sessions.
type Repository interface {
	Insert(ctx context.Context, session *models.UploadSession) error
	GetWithFile(ctx context.Context, ownerID, id string) (*models.UploadSession, *models.FileNode, error)
	SetStatus(ctx context.Context, id string, status models.UploadStatus) error
	SetProgress(ctx context.Context, id string, uploadedSize int64) error
}
