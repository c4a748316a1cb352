// Package services implements the three core subsystems over the metadata
// repositories and the object storage adapter: the file hierarchy engine, the
// multipart upload coordinator, and the archive streaming service.
package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mpetrovs/cloudvault/internal/common"
	"github.com/mpetrovs/cloudvault/internal/logging"
	"github.com/mpetrovs/cloudvault/internal/server/models"
	"github.com/mpetrovs/cloudvault/internal/server/repositories/repomanager"
)

// HierarchyService owns naming, move/rename, cycle prevention and cascading
// soft-delete over the file tree. The metadata store is the only
// synchronization point: pre-checks here are advisory and the store's unique
// constraint is the backstop.
type HierarchyService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger
}

func NewHierarchyService(db *sql.DB, repos repomanager.RepositoryManager, logger logging.Logger) *HierarchyService {
	return &HierarchyService{
		db:     db,
		repos:  repos,
		logger: logger.With("module", "hierarchy"),
	}
}

// List returns the live, completed children of parentID (nil = root),
// newest first.
func (s *HierarchyService) List(ctx context.Context, ownerID string, parentID *string) ([]*models.FileNode, error) {
	return s.repos.Files(s.db).ListByParent(ctx, ownerID, parentID)
}

// Get returns a single node, or ErrNotFound if it is absent, foreign-owned
// or soft-deleted.
func (s *HierarchyService) Get(ctx context.Context, ownerID, fileID string) (*models.FileNode, error) {
	return s.repos.Files(s.db).GetByID(ctx, ownerID, fileID)
}

// CheckNameCollision reports whether name is already taken under parentID.
func (s *HierarchyService) CheckNameCollision(ctx context.Context, ownerID string, parentID *string, name string) (bool, error) {
	return s.repos.Files(s.db).NameExists(ctx, ownerID, parentID, name)
}

// Rename updates a node's name in place. A live sibling with the new name
// yields ErrConflict.
func (s *HierarchyService) Rename(ctx context.Context, ownerID, fileID, newName string) (*models.FileNode, error) {
	if newName == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrInvalidArgument)
	}

	repo := s.repos.Files(s.db)

	node, err := repo.GetByID(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}
	if node.Name == newName {
		return node, nil
	}

	taken, err := repo.NameExists(ctx, ownerID, node.ParentID, newName)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: %q already exists here", common.ErrConflict, newName)
	}

	if err := repo.Rename(ctx, ownerID, fileID, newName); err != nil {
		return nil, err
	}

	node.Name = newName
	return node, nil
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Move re-parents a node. A nil newParentID moves it to the root; a move that
// keeps the current parent is a no-op. Moving a node into itself is
// ErrInvalidArgument; moving a folder under its own descendant is ErrConflict
// (the upward ancestor walk catches any depth); a destination sibling with the
// same name is ErrConflict.
func (s *HierarchyService) Move(ctx context.Context, ownerID, fileID string, newParentID *string) (*models.FileNode, error) {
	repo := s.repos.Files(s.db)

	node, err := repo.GetByID(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}

	// A move that keeps the current parent is a no-op; the collision check
	// below would match the node itself.
	if sameParent(node.ParentID, newParentID) {
		return node, nil
	}

	if newParentID != nil {
		if *newParentID == fileID {
			return nil, fmt.Errorf("%w: cannot move a node into itself", common.ErrInvalidArgument)
		}

		parent, err := repo.GetByID(ctx, ownerID, *newParentID)
		if err != nil {
			return nil, err
		}
		if !parent.IsFolder() {
			return nil, fmt.Errorf("%w: destination is not a folder", common.ErrInvalidArgument)
		}

		if node.IsFolder() {
			cyclic, err := repo.IsAncestor(ctx, ownerID, fileID, *newParentID)
			if err != nil {
				return nil, err
			}
			if cyclic {
				return nil, fmt.Errorf("%w: move would create a cycle", common.ErrConflict)
			}
		}
	}

	taken, err := repo.NameExists(ctx, ownerID, newParentID, node.Name)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: %q already exists at the destination", common.ErrConflict, node.Name)
	}

	if err := repo.SetParent(ctx, ownerID, fileID, newParentID); err != nil {
		return nil, err
	}

	node.ParentID = newParentID
	return node, nil
}

// DeleteRecursive soft-deletes the target and, for folders, every descendant
// in one atomic statement. Siblings and ancestors are never touched.
func (s *HierarchyService) DeleteRecursive(ctx context.Context, ownerID, fileID string) error {
	n, err := s.repos.Files(s.db).SoftDeleteTree(ctx, ownerID, fileID)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrNotFound
	}
	s.logger.Info(ctx, "subtree deleted", "file_id", fileID, "nodes", n)
	return nil
}

// DescendantFiles enumerates every live file under folderID with its relative
// path. Used by the archive streaming service.
func (s *HierarchyService) DescendantFiles(ctx context.Context, ownerID, folderID string) ([]models.DescendantFile, error) {
	return s.repos.Files(s.db).DescendantFiles(ctx, ownerID, folderID)
}
