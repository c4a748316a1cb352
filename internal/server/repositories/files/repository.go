// Package files persists the file/folder hierarchy. The recursive tree
// operations (descendant enumeration, ancestor walk, cascading soft-delete)
// are single-shot recursive CTEs, never one round-trip per level.
package files

import (
	"context"

	"github.com/mpetrovs/cloudvault/internal/server/models"
)

// Repository is the metadata-store contract for file nodes.
type Repository interface {
	Insert(ctx context.Context, node *models.FileNode) error
	GetByID(ctx context.Context, ownerID, id string) (*models.FileNode, error)
	ListByParent(ctx context.Context, ownerID string, parentID *string) ([]*models.FileNode, error)
	NameExists(ctx context.Context, ownerID string, parentID *string, name string) (bool, error)
	Rename(ctx context.Context, ownerID, id, name string) error
	SetParent(ctx context.Context, ownerID, id string, parentID *string) error
	SetStatus(ctx context.Context, ownerID, id string, status models.FileStatus) error
	SoftDelete(ctx context.Context, id string) error
	SoftDeleteTree(ctx context.Context, ownerID, id string) (int64, error)
	IsAncestor(ctx context.Context, ownerID, nodeID, startID string) (bool, error)
	DescendantFiles(ctx context.Context, ownerID, rootID string) ([]models.DescendantFile, error)
}
