package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mpetrovs/cloudvault/internal/common"
	"github.com/mpetrovs/cloudvault/internal/dbx"
	"github.com/mpetrovs/cloudvault/internal/server/models"
)

// PostgresRepository implements file-node storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const uniqueViolation = "23505"

// classify maps a unique-constraint violation to ErrConflict. The partial
// unique indexes on (owner_id, parent_id, name) are the authoritative guard;
// losing a race to a concurrent create/rename/move surfaces here.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: name already taken", common.ErrConflict)
	}
	return fmt.Errorf("db error: %w", err)
}

// Insert stores a new node. A live sibling with the same name makes the
// unique index reject the write, surfaced as ErrConflict.
func (r *PostgresRepository) Insert(ctx context.Context, node *models.FileNode) error {
	query := `
		INSERT INTO files (id, owner_id, parent_id, name, kind, mime_type, size, status, storage_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		node.ID, node.OwnerID, node.ParentID, node.Name, node.Kind,
		node.MimeType, node.Size, node.Status, node.StorageKey)
	if err != nil {
		return classify(err)
	}
	return nil
}

const nodeColumns = `id, owner_id, parent_id, name, kind, mime_type, size, status, storage_key, is_deleted, created_at, updated_at`

func scanNode(row interface{ Scan(...any) error }) (*models.FileNode, error) {
	var n models.FileNode
	err := row.Scan(&n.ID, &n.OwnerID, &n.ParentID, &n.Name, &n.Kind,
		&n.MimeType, &n.Size, &n.Status, &n.StorageKey, &n.IsDeleted,
		&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// GetByID returns a single live node. A foreign-owned or soft-deleted node is
// reported exactly like an absent one.
func (r *PostgresRepository) GetByID(ctx context.Context, ownerID, id string) (*models.FileNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM files WHERE owner_id=$1 AND id=$2 AND NOT is_deleted`
	n, err := scanNode(r.db.QueryRowContext(ctx, query, ownerID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return n, nil
}

// ListByParent returns the live, completed children of a parent (nil = root),
// newest first. Pending entries stay hidden from folder browsing.
func (r *PostgresRepository) ListByParent(ctx context.Context, ownerID string, parentID *string) ([]*models.FileNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM files
		WHERE owner_id=$1 AND NOT is_deleted AND status='completed' AND parent_id IS NOT DISTINCT FROM $2
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, ownerID, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.FileNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// NameExists reports whether a live sibling with the given name occupies the
// (owner, parent, name) slot. Advisory pre-check; the unique index is the
// backstop.
func (r *PostgresRepository) NameExists(ctx context.Context, ownerID string, parentID *string, name string) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM files
		WHERE owner_id=$1 AND parent_id IS NOT DISTINCT FROM $2 AND name=$3 AND NOT is_deleted
	)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, ownerID, parentID, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check name: %w", err)
	}
	return exists, nil
}

// Rename updates the name in place. Exactly one live row must match.
func (r *PostgresRepository) Rename(ctx context.Context, ownerID, id, name string) error {
	query := `UPDATE files SET name=$3, updated_at=now() WHERE owner_id=$1 AND id=$2 AND NOT is_deleted`
	return r.execOne(ctx, query, ownerID, id, name)
}

// SetParent re-parents a node (nil = move to root).
func (r *PostgresRepository) SetParent(ctx context.Context, ownerID, id string, parentID *string) error {
	query := `UPDATE files SET parent_id=$3, updated_at=now() WHERE owner_id=$1 AND id=$2 AND NOT is_deleted`
	return r.execOne(ctx, query, ownerID, id, parentID)
}

// SetStatus transitions a node's lifecycle status.
func (r *PostgresRepository) SetStatus(ctx context.Context, ownerID, id string, status models.FileStatus) error {
	query := `UPDATE files SET status=$3, updated_at=now() WHERE owner_id=$1 AND id=$2 AND NOT is_deleted`
	return r.execOne(ctx, query, ownerID, id, status)
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// SoftDelete marks a single row deleted by id, regardless of owner scoping.
// Used inside transactions where ownership was already established.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE files SET is_deleted=true, updated_at=now() WHERE id=$1`
	return r.execOne(ctx, query, id)
}

// SoftDeleteTree marks the target and every live descendant deleted in one
// statement, scoped to the owner. Returns the number of rows marked; zero
// means the target did not exist for this owner.
func (r *PostgresRepository) SoftDeleteTree(ctx context.Context, ownerID, id string) (int64, error) {
	query := `
		WITH RECURSIVE folder_tree AS (
			SELECT id FROM files
			WHERE id=$2 AND owner_id=$1 AND NOT is_deleted

			UNION ALL

			SELECT f.id FROM files f
			INNER JOIN folder_tree ft ON f.parent_id = ft.id
			WHERE NOT f.is_deleted
		)
		UPDATE files SET is_deleted=true, updated_at=now()
		WHERE id IN (SELECT id FROM folder_tree) AND owner_id=$1
	`
	res, err := r.db.ExecContext(ctx, query, ownerID, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tree: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// IsAncestor walks the parent chain upward from startID to the root and
// reports whether nodeID appears in it. startID itself counts, so moving a
// folder into its own subtree (or itself) is detected with one query.
func (r *PostgresRepository) IsAncestor(ctx context.Context, ownerID, nodeID, startID string) (bool, error) {
	query := `
		WITH RECURSIVE path_up AS (
			SELECT id, parent_id FROM files
			WHERE id=$2 AND owner_id=$1

			UNION ALL

			SELECT f.id, f.parent_id FROM files f
			INNER JOIN path_up p ON f.id = p.parent_id
		)
		SELECT EXISTS (SELECT 1 FROM path_up WHERE id=$3)
	`
	var found bool
	if err := r.db.QueryRowContext(ctx, query, ownerID, startID, nodeID).Scan(&found); err != nil {
		return false, fmt.Errorf("failed to walk ancestors: %w", err)
	}
	return found, nil
}

// DescendantFiles enumerates every live file under rootID together with its
// '/'-joined relative path, starting at the root's own name. Folders are
// traversed but not returned.
func (r *PostgresRepository) DescendantFiles(ctx context.Context, ownerID, rootID string) ([]models.DescendantFile, error) {
	query := `
		WITH RECURSIVE files_tree AS (
			SELECT id, kind, storage_key, parent_id, name::text AS relative_path
			FROM files
			WHERE id=$2 AND owner_id=$1 AND NOT is_deleted

			UNION ALL

			SELECT f.id, f.kind, f.storage_key, f.parent_id,
				(ft.relative_path || '/' || f.name)::text AS relative_path
			FROM files f
			INNER JOIN files_tree ft ON f.parent_id = ft.id
			WHERE f.owner_id=$1 AND NOT f.is_deleted
		)
		SELECT id, storage_key, relative_path FROM files_tree WHERE kind='file'
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID, rootID)
	if err != nil {
		return nil, fmt.Errorf("failed to select descendants: %w", err)
	}
	defer rows.Close()

	var result []models.DescendantFile
	for rows.Next() {
		var d models.DescendantFile
		var key sql.NullString
		if err := rows.Scan(&d.ID, &key, &d.RelativePath); err != nil {
			return nil, err
		}
		d.StorageKey = key.String
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
