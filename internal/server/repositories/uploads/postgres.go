package uploads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mpetrovs/cloudvault/internal/common"
	"github.com/mpetrovs/cloudvault/internal/dbx"
	"github.com/mpetrovs/cloudvault/internal/server/models"
)

// PostgresRepository implements upload-session storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores a new session in its initial state.
func (r *PostgresRepository) Insert(ctx context.Context, s *models.UploadSession) error {
	query := `
		INSERT INTO uploads (id, file_id, owner_id, status, total_size, uploaded_size, multipart_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.FileID, s.OwnerID, s.Status, s.TotalSize, s.UploadedSize, s.MultipartID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetWithFile returns a session together with its file row, scoped to the
// owner. A session belonging to someone else is reported as absent.
func (r *PostgresRepository) GetWithFile(ctx context.Context, ownerID, id string) (*models.UploadSession, *models.FileNode, error) {
	query := `
		SELECT u.id, u.file_id, u.owner_id, u.status, u.total_size, u.uploaded_size, u.multipart_id,
			u.created_at, u.updated_at,
			f.id, f.owner_id, f.parent_id, f.name, f.kind, f.mime_type, f.size, f.status,
			f.storage_key, f.is_deleted, f.created_at, f.updated_at
		FROM uploads u
		INNER JOIN files f ON f.id = u.file_id
		WHERE u.owner_id=$1 AND u.id=$2
	`
	var s models.UploadSession
	var f models.FileNode
	err := r.db.QueryRowContext(ctx, query, ownerID, id).Scan(
		&s.ID, &s.FileID, &s.OwnerID, &s.Status, &s.TotalSize, &s.UploadedSize, &s.MultipartID,
		&s.CreatedAt, &s.UpdatedAt,
		&f.ID, &f.OwnerID, &f.ParentID, &f.Name, &f.Kind, &f.MimeType, &f.Size, &f.Status,
		&f.StorageKey, &f.IsDeleted, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, common.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to select upload: %w", err)
	}
	return &s, &f, nil
}

// SetStatus transitions a session. Exactly one row must be affected.
func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status models.UploadStatus) error {
	query := `UPDATE uploads SET status=$2, updated_at=now() WHERE id=$1`
	res, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
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

// SetProgress refreshes the cached uploadedSize and bumps a fresh session to
// uploading. The guards keep the cache monotonic and terminal states immutable;
// an update losing that race simply affects zero rows, which is not an error.
func (r *PostgresRepository) SetProgress(ctx context.Context, id string, uploadedSize int64) error {
	query := `
		UPDATE uploads SET uploaded_size=$2, status='uploading', updated_at=now()
		WHERE id=$1 AND status IN ('initiated', 'uploading') AND uploaded_size <= $2
	`
	if _, err := r.db.ExecContext(ctx, query, id, uploadedSize); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
