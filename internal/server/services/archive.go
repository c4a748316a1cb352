package services

import (
	"archive/zip"
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/mpetrovs/cloudvault/internal/common"
	"github.com/mpetrovs/cloudvault/internal/logging"
	sc "github.com/mpetrovs/cloudvault/internal/server/config"
	"github.com/mpetrovs/cloudvault/internal/server/models"
	"github.com/mpetrovs/cloudvault/internal/server/objstore"
	"github.com/mpetrovs/cloudvault/internal/server/repositories/repomanager"
)

// ArchiveService assembles a folder's descendant files into a single streamed
// zip. Nothing is buffered beyond the archive writer's own state: each file's
// bytes flow object store → zip entry → outbound writer, and a slow consumer
// pauses the pipeline through backpressure on the writer.
type ArchiveService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	store  objstore.Store
	config *sc.Config
	logger logging.Logger
}

func NewArchiveService(db *sql.DB, repos repomanager.RepositoryManager, store objstore.Store, config *sc.Config, logger logging.Logger) *ArchiveService {
	return &ArchiveService{
		db:     db,
		repos:  repos,
		store:  store,
		config: config,
		logger: logger.With("module", "archive"),
	}
}

// DownloadPlan tells the transport layer how to serve a download request:
// a presigned URL for a single small file, or a node to stream as an archive.
type DownloadPlan struct {
	Node *models.FileNode
	URL  string // set for files; empty means stream the folder
}

// Download resolves the target node. A file at or under the direct-download
// limit is served by presigned URL; a larger file must use the chunked
// download path and is rejected here. Folders are streamed via StreamFolder.
func (s *ArchiveService) Download(ctx context.Context, ownerID, fileID string) (*DownloadPlan, error) {
	node, err := s.repos.Files(s.db).GetByID(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}

	if node.IsFolder() {
		return &DownloadPlan{Node: node}, nil
	}

	if node.Size > s.config.DirectUploadLimit {
		return nil, fmt.Errorf("%w: file exceeds direct download limit, use chunked download", common.ErrInvalidArgument)
	}
	if node.StorageKey == nil {
		return nil, fmt.Errorf("%w: file has no storage key", common.ErrInternal)
	}

	url, err := s.store.PresignDownload(ctx, *node.StorageKey)
	if err != nil {
		return nil, err
	}
	return &DownloadPlan{Node: node, URL: url}, nil
}

// StreamFolder writes a zip of every descendant file to w, entry paths
// matching the enumeration's relative paths. A folder with zero eligible
// descendants is ErrNotFound. Any mid-stream failure aborts the output:
// the error is returned without closing the archive, so the consumer sees a
// truncated stream, never a clean end.
func (s *ArchiveService) StreamFolder(ctx context.Context, ownerID, folderID string, w io.Writer) error {
	descendants, err := s.repos.Files(s.db).DescendantFiles(ctx, ownerID, folderID)
	if err != nil {
		return err
	}
	if len(descendants) == 0 {
		return fmt.Errorf("%w: folder has no files", common.ErrNotFound)
	}

	zw := zip.NewWriter(w)

	for _, d := range descendants {
		// Client disconnects must stop fetching promptly, not drain the
		// remaining descendants.
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.StorageKey == "" {
			continue
		}

		if err := s.writeEntry(ctx, zw, d); err != nil {
			s.logger.Error(ctx, "archive stream aborted", "file_id", d.ID, "error", err.Error())
			return err
		}
	}

	return zw.Close()
}

func (s *ArchiveService) writeEntry(ctx context.Context, zw *zip.Writer, d models.DescendantFile) error {
	entry, err := zw.Create(d.RelativePath)
	if err != nil {
		return fmt.Errorf("failed to create archive entry: %w", err)
	}

	body, err := s.store.GetObject(ctx, d.StorageKey)
	if err != nil {
		return err
	}
	defer body.Close()

	if _, err := io.Copy(entry, body); err != nil {
		return fmt.Errorf("failed to stream %s: %w", d.RelativePath, err)
	}
	return nil
}
