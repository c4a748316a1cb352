package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mpetrovs/cloudvault/internal/common"
	"github.com/mpetrovs/cloudvault/internal/dbx"
	"github.com/mpetrovs/cloudvault/internal/logging"
	sc "github.com/mpetrovs/cloudvault/internal/server/config"
	"github.com/mpetrovs/cloudvault/internal/server/models"
	"github.com/mpetrovs/cloudvault/internal/server/objstore"
	"github.com/mpetrovs/cloudvault/internal/server/repositories/repomanager"
)

// UploadService coordinates the multipart-upload state machine: chunk
// planning, presigned URL issuance, and keeping metadata consistent with
// object-storage truth.
type UploadService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	store  objstore.Store
	config *sc.Config
	logger logging.Logger
}

func NewUploadService(db *sql.DB, repos repomanager.RepositoryManager, store objstore.Store, config *sc.Config, logger logging.Logger) *UploadService {
	return &UploadService{
		db:     db,
		repos:  repos,
		store:  store,
		config: config,
		logger: logger.With("module", "uploads"),
	}
}

// newStorageKey allocates a date-partitioned, file-scoped object key.
// Keys are never reused across files.
func newStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("users/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

// InitiateRequest is the metadata for a new upload.
type InitiateRequest struct {
	Name     string
	Size     int64
	Kind     models.NodeKind
	MimeType string
	ParentID *string
}

// InitiateResult describes how the client should proceed. Exactly one of the
// three shapes is populated: a folder (File only), a small object (UploadURL),
// or a multipart plan (SessionID, MultipartID, PartURLs).
type InitiateResult struct {
	File        *models.FileNode
	UploadURL   string
	SessionID   string
	MultipartID string
	PartURLs    []objstore.PresignedPart
}

// PartInput is one chunk the client reports as uploaded.
type PartInput struct {
	PartNumber int32
	ETag       string
}

// StatusResult is the coordinator's view of an upload's progress. For
// non-terminal sessions UploadedSize is the external store's authoritative
// sum, not the local cache.
type StatusResult struct {
	Status       models.UploadStatus
	TotalSize    int64
	UploadedSize int64
	Parts        []objstore.Part
}

func (s *UploadService) validateInitiate(req *InitiateRequest) error {
	if req.Name == "" {
		return fmt.Errorf("%w: name is required", common.ErrInvalidArgument)
	}
	switch req.Kind {
	case models.KindFolder:
		return nil
	case models.KindFile:
	default:
		return fmt.Errorf("%w: kind must be file or folder", common.ErrInvalidArgument)
	}
	if req.MimeType == "" {
		return fmt.Errorf("%w: mimeType is required for files", common.ErrInvalidArgument)
	}
	if req.Size <= 0 {
		return fmt.Errorf("%w: size is required for files", common.ErrInvalidArgument)
	}
	if req.Size > s.config.MaxUploadSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", common.ErrPayloadTooLarge, req.Size, s.config.MaxUploadSize)
	}
	return nil
}

// InitiateUpload validates the request and branches on kind and size.
// A non-nil parent must be a live folder owned by the caller.
// Folders are created completed and returned immediately. Small files get a
// single presigned PUT URL and no session. Larger files open an external
// multipart session, record an UploadSession, and return one presigned URL
// per planned chunk.
func (s *UploadService) InitiateUpload(ctx context.Context, ownerID string, req InitiateRequest) (*InitiateResult, error) {
	if err := s.validateInitiate(&req); err != nil {
		return nil, err
	}

	filesRepo := s.repos.Files(s.db)

	if req.ParentID != nil {
		parent, err := filesRepo.GetByID(ctx, ownerID, *req.ParentID)
		if err != nil {
			return nil, err
		}
		if !parent.IsFolder() {
			return nil, fmt.Errorf("%w: parent is not a folder", common.ErrInvalidArgument)
		}
	}

	if taken, err := filesRepo.NameExists(ctx, ownerID, req.ParentID, req.Name); err != nil {
		return nil, err
	} else if taken {
		return nil, fmt.Errorf("%w: %q already exists here", common.ErrConflict, req.Name)
	}

	if req.Kind == models.KindFolder {
		node := &models.FileNode{
			ID:       uuid.New().String(),
			OwnerID:  ownerID,
			ParentID: req.ParentID,
			Name:     req.Name,
			Kind:     models.KindFolder,
			Status:   models.FileCompleted,
		}
		if err := filesRepo.Insert(ctx, node); err != nil {
			return nil, err
		}
		return &InitiateResult{File: node}, nil
	}

	key := newStorageKey()
	node := &models.FileNode{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		ParentID:   req.ParentID,
		Name:       req.Name,
		Kind:       models.KindFile,
		MimeType:   &req.MimeType,
		Size:       req.Size,
		Status:     models.FilePending,
		StorageKey: &key,
	}
	if err := filesRepo.Insert(ctx, node); err != nil {
		return nil, err
	}

	if req.Size <= s.config.DirectUploadLimit {
		url, err := s.store.PresignUpload(ctx, key)
		if err != nil {
			return nil, err
		}
		return &InitiateResult{File: node, UploadURL: url}, nil
	}

	multipartID, err := s.store.CreateMultipart(ctx, key)
	if err != nil {
		// The pending row is already in; remove the orphan before surfacing
		// the failure. Cleanup is best-effort.
		if delErr := filesRepo.SoftDelete(ctx, node.ID); delErr != nil {
			s.logger.Error(ctx, "orphaned pending file left behind", "file_id", node.ID, "error", delErr.Error())
		}
		return nil, err
	}

	session := &models.UploadSession{
		ID:          uuid.New().String(),
		FileID:      node.ID,
		OwnerID:     ownerID,
		Status:      models.UploadInitiated,
		TotalSize:   req.Size,
		MultipartID: multipartID,
	}
	if err := s.repos.Uploads(s.db).Insert(ctx, session); err != nil {
		return nil, err
	}

	urls, err := s.presignChunks(ctx, key, multipartID, req.Size)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "multipart upload initiated",
		"file_id", node.ID, "session_id", session.ID, "parts", len(urls))

	return &InitiateResult{
		File:        node,
		SessionID:   session.ID,
		MultipartID: multipartID,
		PartURLs:    urls,
	}, nil
}

// presignChunks issues one upload URL per planned chunk. Presigning is a pure
// network fan-out, run concurrently under a bounded worker cap.
func (s *UploadService) presignChunks(ctx context.Context, key, multipartID string, size int64) ([]objstore.PresignedPart, error) {
	plan := PlanChunks(size, s.config.ChunkSize)
	urls := make([]objstore.PresignedPart, len(plan))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.PresignConcurrency)

	for i, c := range plan {
		i, c := i, c
		g.Go(func() error {
			url, err := s.store.PresignUploadPart(ctx, key, multipartID, c.PartNumber)
			if err != nil {
				return err
			}
			urls[i] = objstore.PresignedPart{PartNumber: c.PartNumber, URL: url}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

// CompleteSingleUpload finishes a small-object direct upload by transitioning
// the file to completed.
func (s *UploadService) CompleteSingleUpload(ctx context.Context, ownerID, fileID string) error {
	return s.repos.Files(s.db).SetStatus(ctx, ownerID, fileID, models.FileCompleted)
}

// CompleteUpload submits the client's part list to the external store and, on
// success, transitions the session and its file to completed in one
// transaction. A crash cannot leave one row updated without the other.
func (s *UploadService) CompleteUpload(ctx context.Context, ownerID, sessionID string, parts []PartInput) error {
	if len(parts) == 0 {
		return fmt.Errorf("%w: parts list is empty", common.ErrInvalidArgument)
	}

	session, file, err := s.repos.Uploads(s.db).GetWithFile(ctx, ownerID, sessionID)
	if err != nil {
		return err
	}
	if session.Terminal() {
		return fmt.Errorf("%w: upload session is already %s", common.ErrConflict, session.Status)
	}
	if file.StorageKey == nil {
		return fmt.Errorf("%w: upload session has no storage key", common.ErrInternal)
	}

	// The external protocol requires strictly ascending part numbers.
	// Contiguity is the external store's problem to validate.
	sorted := make([]objstore.CompletedPart, 0, len(parts))
	for _, p := range parts {
		sorted = append(sorted, objstore.CompletedPart{Number: p.PartNumber, ETag: p.ETag})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	if err := s.store.CompleteMultipart(ctx, *file.StorageKey, session.MultipartID, sorted); err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Uploads(tx).SetStatus(ctx, session.ID, models.UploadCompleted); err != nil {
			return err
		}
		return s.repos.Files(tx).SetStatus(ctx, ownerID, file.ID, models.FileCompleted)
	})
	if err != nil {
		return fmt.Errorf("error completing upload: %w", err)
	}

	s.logger.Info(ctx, "upload completed", "session_id", session.ID, "file_id", file.ID)
	return nil
}

// AbortUpload discards the external multipart session, then marks the session
// aborted and soft-deletes the file in one transaction. An aborted upload
// never produces a usable file.
func (s *UploadService) AbortUpload(ctx context.Context, ownerID, sessionID string) error {
	session, file, err := s.repos.Uploads(s.db).GetWithFile(ctx, ownerID, sessionID)
	if err != nil {
		return err
	}
	if session.Terminal() {
		return fmt.Errorf("%w: upload session is already %s", common.ErrConflict, session.Status)
	}
	if file.StorageKey == nil {
		return fmt.Errorf("%w: upload session has no storage key", common.ErrInternal)
	}

	if err := s.store.AbortMultipart(ctx, *file.StorageKey, session.MultipartID); err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Uploads(tx).SetStatus(ctx, session.ID, models.UploadAborted); err != nil {
			return err
		}
		return s.repos.Files(tx).SoftDelete(ctx, file.ID)
	})
	if err != nil {
		return fmt.Errorf("error aborting upload: %w", err)
	}

	s.logger.Info(ctx, "upload aborted", "session_id", session.ID, "file_id", file.ID)
	return nil
}

// Status reports upload progress. Terminal sessions are answered from
// metadata alone. Otherwise the external part listing is authoritative; the
// cached uploadedSize is refreshed in the background and never blocks the
// response.
func (s *UploadService) Status(ctx context.Context, ownerID, sessionID string) (*StatusResult, error) {
	session, file, err := s.repos.Uploads(s.db).GetWithFile(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}

	if session.Status == models.UploadCompleted {
		return &StatusResult{
			Status:       models.UploadCompleted,
			TotalSize:    session.TotalSize,
			UploadedSize: session.TotalSize,
		}, nil
	}
	if session.Status == models.UploadAborted {
		// AbortMultipart removed the external listing; the cached value is
		// the last known progress.
		return &StatusResult{
			Status:       models.UploadAborted,
			TotalSize:    session.TotalSize,
			UploadedSize: session.UploadedSize,
		}, nil
	}
	if file.StorageKey == nil {
		return nil, fmt.Errorf("%w: upload session has no storage key", common.ErrInternal)
	}

	parts, err := s.store.ListParts(ctx, *file.StorageKey, session.MultipartID)
	if err != nil {
		return nil, err
	}

	var uploaded int64
	for _, p := range parts {
		uploaded += p.Size
	}

	if uploaded != session.UploadedSize {
		go s.refreshProgress(session.ID, uploaded)
	}

	return &StatusResult{
		Status:       session.Status,
		TotalSize:    session.TotalSize,
		UploadedSize: uploaded,
		Parts:        parts,
	}, nil
}

// refreshProgress is the fire-and-forget cache refresh behind Status. It runs
// detached from the request context; failures are logged, never surfaced.
func (s *UploadService) refreshProgress(sessionID string, uploaded int64) {
	ctx := context.Background()
	if err := s.repos.Uploads(s.db).SetProgress(ctx, sessionID, uploaded); err != nil {
		s.logger.Warn(ctx, "progress refresh failed", "session_id", sessionID, "error", err.Error())
	}
}

// RegeneratePresignedUrls re-derives the chunk plan from the session's
// original total size and issues a fresh set of part URLs, covering URL
// expiry during long uploads. Session state is not altered.
func (s *UploadService) RegeneratePresignedUrls(ctx context.Context, ownerID, sessionID string) (*InitiateResult, error) {
	session, file, err := s.repos.Uploads(s.db).GetWithFile(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Terminal() {
		return nil, fmt.Errorf("%w: upload session is already %s", common.ErrConflict, session.Status)
	}
	if file.StorageKey == nil {
		return nil, fmt.Errorf("%w: upload session has no storage key", common.ErrInternal)
	}

	urls, err := s.presignChunks(ctx, *file.StorageKey, session.MultipartID, session.TotalSize)
	if err != nil {
		return nil, err
	}

	return &InitiateResult{
		File:        file,
		SessionID:   session.ID,
		MultipartID: session.MultipartID,
		PartURLs:    urls,
	}, nil
}
