package services

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/mpetrovs/cloudvault/internal/common"
	"github.com/mpetrovs/cloudvault/internal/dbx"
	"github.com/mpetrovs/cloudvault/internal/logging"
	"github.com/mpetrovs/cloudvault/internal/server/models"
	"github.com/mpetrovs/cloudvault/internal/server/objstore"
	"github.com/mpetrovs/cloudvault/internal/server/repositories/files"
	"github.com/mpetrovs/cloudvault/internal/server/repositories/repomanager"
	"github.com/mpetrovs/cloudvault/internal/server/repositories/uploads"
)

// -------- test fakes --------

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fakeFilesRepo struct {
	files.Repository

	inserted []*models.FileNode
	insErr   error

	nodes  map[string]*models.FileNode
	getErr error

	listed  []*models.FileNode
	listErr error

	nameTaken bool
	nameErr   error

	renameErr error

	setParentCalls []*string
	setParentErr   error

	ancestor    bool
	ancestorErr error

	statusSet map[string]models.FileStatus
	statusErr error

	softDeleted []string
	softDelErr  error

	treeDeleted int64
	treeErr     error

	descendants []models.DescendantFile
	descErr     error
}

func (f *fakeFilesRepo) Insert(ctx context.Context, node *models.FileNode) error {
	if f.insErr != nil {
		return f.insErr
	}
	f.inserted = append(f.inserted, node)
	return nil
}

func (f *fakeFilesRepo) GetByID(ctx context.Context, ownerID, id string) (*models.FileNode, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if n, ok := f.nodes[id]; ok {
		return n, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeFilesRepo) ListByParent(ctx context.Context, ownerID string, parentID *string) ([]*models.FileNode, error) {
	return f.listed, f.listErr
}

func (f *fakeFilesRepo) NameExists(ctx context.Context, ownerID string, parentID *string, name string) (bool, error) {
	return f.nameTaken, f.nameErr
}

func (f *fakeFilesRepo) Rename(ctx context.Context, ownerID, id, name string) error {
	return f.renameErr
}

func (f *fakeFilesRepo) SetParent(ctx context.Context, ownerID, id string, parentID *string) error {
	if f.setParentErr != nil {
		return f.setParentErr
	}
	f.setParentCalls = append(f.setParentCalls, parentID)
	return nil
}

func (f *fakeFilesRepo) IsAncestor(ctx context.Context, ownerID, nodeID, startID string) (bool, error) {
	return f.ancestor, f.ancestorErr
}

func (f *fakeFilesRepo) SetStatus(ctx context.Context, ownerID, id string, status models.FileStatus) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	if f.statusSet == nil {
		f.statusSet = map[string]models.FileStatus{}
	}
	f.statusSet[id] = status
	return nil
}

func (f *fakeFilesRepo) SoftDelete(ctx context.Context, id string) error {
	if f.softDelErr != nil {
		return f.softDelErr
	}
	f.softDeleted = append(f.softDeleted, id)
	return nil
}

func (f *fakeFilesRepo) SoftDeleteTree(ctx context.Context, ownerID, id string) (int64, error) {
	return f.treeDeleted, f.treeErr
}

func (f *fakeFilesRepo) DescendantFiles(ctx context.Context, ownerID, rootID string) ([]models.DescendantFile, error) {
	return f.descendants, f.descErr
}

type fakeUploadsRepo struct {
	uploads.Repository

	inserted []*models.UploadSession
	insErr   error

	session *models.UploadSession
	file    *models.FileNode
	getErr  error

	statusSet map[string]models.UploadStatus
	statusErr error

	progress map[string]int64
	progErr  error
	progCh   chan struct{}
}

func (f *fakeUploadsRepo) Insert(ctx context.Context, s *models.UploadSession) error {
	if f.insErr != nil {
		return f.insErr
	}
	f.inserted = append(f.inserted, s)
	return nil
}

func (f *fakeUploadsRepo) GetWithFile(ctx context.Context, ownerID, id string) (*models.UploadSession, *models.FileNode, error) {
	if f.getErr != nil {
		return nil, nil, f.getErr
	}
	return f.session, f.file, nil
}

func (f *fakeUploadsRepo) SetStatus(ctx context.Context, id string, status models.UploadStatus) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	if f.statusSet == nil {
		f.statusSet = map[string]models.UploadStatus{}
	}
	f.statusSet[id] = status
	return nil
}

func (f *fakeUploadsRepo) SetProgress(ctx context.Context, id string, uploadedSize int64) error {
	if f.progress == nil {
		f.progress = map[string]int64{}
	}
	f.progress[id] = uploadedSize
	if f.progCh != nil {
		f.progCh <- struct{}{}
	}
	return f.progErr
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	f *fakeFilesRepo
	u *fakeUploadsRepo
}

func (m *fakeRepoManager) Files(db dbx.DBTX) files.Repository {
	return m.f
}

func (m *fakeRepoManager) Uploads(db dbx.DBTX) uploads.Repository {
	return m.u
}

type fakeStore struct {
	multipartID string
	createErr   error
	createCalls []string

	completed   []objstore.CompletedPart
	completeErr error

	aborted  []string
	abortErr error

	parts   []objstore.Part
	listErr error
	listed  int

	putURL   string
	putErr   error
	putCalls int

	getURL string
	getErr error

	partURLs map[int32]string
	partErr  error

	objects map[string]string
	objErr  error
}

func (s *fakeStore) CreateMultipart(ctx context.Context, key string) (string, error) {
	if s.createErr != nil {
		return "", s.createErr
	}
	s.createCalls = append(s.createCalls, key)
	return s.multipartID, nil
}

func (s *fakeStore) CompleteMultipart(ctx context.Context, key, multipartID string, parts []objstore.CompletedPart) error {
	if s.completeErr != nil {
		return s.completeErr
	}
	s.completed = parts
	return nil
}

func (s *fakeStore) AbortMultipart(ctx context.Context, key, multipartID string) error {
	if s.abortErr != nil {
		return s.abortErr
	}
	s.aborted = append(s.aborted, multipartID)
	return nil
}

func (s *fakeStore) ListParts(ctx context.Context, key, multipartID string) ([]objstore.Part, error) {
	s.listed++
	return s.parts, s.listErr
}

func (s *fakeStore) PresignUpload(ctx context.Context, key string) (string, error) {
	s.putCalls++
	return s.putURL, s.putErr
}

func (s *fakeStore) PresignDownload(ctx context.Context, key string) (string, error) {
	return s.getURL, s.getErr
}

func (s *fakeStore) PresignUploadPart(ctx context.Context, key, multipartID string, partNumber int32) (string, error) {
	if s.partErr != nil {
		return "", s.partErr
	}
	if url, ok := s.partURLs[partNumber]; ok {
		return url, nil
	}
	return "url-" + key, nil
}

func (s *fakeStore) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.objErr != nil {
		return nil, s.objErr
	}
	content, ok := s.objects[key]
	if !ok {
		return nil, s.objErr
	}
	return io.NopCloser(strings.NewReader(content)), nil
}
