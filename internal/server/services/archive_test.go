package services

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpetrovs/cloudvault/internal/common"
	sc "github.com/mpetrovs/cloudvault/internal/server/config"
	"github.com/mpetrovs/cloudvault/internal/server/models"
)

func newArchiveService(f *fakeFilesRepo, store *fakeStore) *ArchiveService {
	cfg := &sc.Config{}
	cfg.LoadDefaults()
	return NewArchiveService(nil, &fakeRepoManager{f: f}, store, cfg, testLogger())
}

func TestDownload(t *testing.T) {
	t.Run("missing node", func(t *testing.T) {
		svc := newArchiveService(&fakeFilesRepo{}, &fakeStore{})
		_, err := svc.Download(context.Background(), "u1", "nope")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("small file gets a url", func(t *testing.T) {
		repo := &fakeFilesRepo{nodes: map[string]*models.FileNode{
			"f1": {ID: "f1", Kind: models.KindFile, Size: 1024, StorageKey: strptr("k1")},
		}}
		svc := newArchiveService(repo, &fakeStore{getURL: "https://s3/get"})

		plan, err := svc.Download(context.Background(), "u1", "f1")
		require.NoError(t, err)
		assert.Equal(t, "https://s3/get", plan.URL)
	})

	t.Run("large file is rejected", func(t *testing.T) {
		repo := &fakeFilesRepo{nodes: map[string]*models.FileNode{
			"f1": {ID: "f1", Kind: models.KindFile, Size: 20 * 1024 * 1024, StorageKey: strptr("k1")},
		}}
		svc := newArchiveService(repo, &fakeStore{})

		_, err := svc.Download(context.Background(), "u1", "f1")
		assert.ErrorIs(t, err, common.ErrInvalidArgument)
	})

	t.Run("folder streams", func(t *testing.T) {
		repo := &fakeFilesRepo{nodes: map[string]*models.FileNode{
			"d1": {ID: "d1", Kind: models.KindFolder},
		}}
		svc := newArchiveService(repo, &fakeStore{})

		plan, err := svc.Download(context.Background(), "u1", "d1")
		require.NoError(t, err)
		assert.Empty(t, plan.URL)
		assert.Equal(t, "d1", plan.Node.ID)
	})
}

func TestStreamFolder(t *testing.T) {
	t.Run("empty folder", func(t *testing.T) {
		svc := newArchiveService(&fakeFilesRepo{}, &fakeStore{})
		err := svc.StreamFolder(context.Background(), "u1", "d1", io.Discard)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("entries mirror relative paths", func(t *testing.T) {
		repo := &fakeFilesRepo{descendants: []models.DescendantFile{
			{ID: "f1", StorageKey: "k1", RelativePath: "docs/a.txt"},
			{ID: "f2", StorageKey: "k2", RelativePath: "docs/sub/b.txt"},
		}}
		store := &fakeStore{objects: map[string]string{
			"k1": "alpha",
			"k2": "beta",
		}}
		svc := newArchiveService(repo, store)

		var buf bytes.Buffer
		err := svc.StreamFolder(context.Background(), "u1", "d1", &buf)
		require.NoError(t, err)

		zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		require.NoError(t, err)
		require.Len(t, zr.File, 2)

		want := map[string]string{"docs/a.txt": "alpha", "docs/sub/b.txt": "beta"}
		for _, f := range zr.File {
			rc, err := f.Open()
			require.NoError(t, err)
			content, err := io.ReadAll(rc)
			require.NoError(t, err)
			rc.Close()
			assert.Equal(t, want[f.Name], string(content))
		}
	})

	t.Run("fetch failure truncates the stream", func(t *testing.T) {
		repo := &fakeFilesRepo{descendants: []models.DescendantFile{
			{ID: "f1", StorageKey: "k1", RelativePath: "a.txt"},
		}}
		svc := newArchiveService(repo, &fakeStore{objErr: common.ErrUnavailable})

		var buf bytes.Buffer
		err := svc.StreamFolder(context.Background(), "u1", "d1", &buf)
		require.ErrorIs(t, err, common.ErrUnavailable)

		// No central directory was written, so the output is not a valid
		// archive.
		_, err = zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		assert.Error(t, err)
	})

	t.Run("cancelled context stops enumeration", func(t *testing.T) {
		repo := &fakeFilesRepo{descendants: []models.DescendantFile{
			{ID: "f1", StorageKey: "k1", RelativePath: "a.txt"},
		}}
		store := &fakeStore{objects: map[string]string{"k1": "alpha"}}
		svc := newArchiveService(repo, store)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := svc.StreamFolder(ctx, "u1", "d1", io.Discard)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("nodes without a key are skipped", func(t *testing.T) {
		repo := &fakeFilesRepo{descendants: []models.DescendantFile{
			{ID: "f1", StorageKey: "", RelativePath: "ghost.txt"},
			{ID: "f2", StorageKey: "k2", RelativePath: "b.txt"},
		}}
		store := &fakeStore{objects: map[string]string{"k2": "beta"}}
		svc := newArchiveService(repo, store)

		var buf bytes.Buffer
		err := svc.StreamFolder(context.Background(), "u1", "d1", &buf)
		require.NoError(t, err)

		zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		require.NoError(t, err)
		require.Len(t, zr.File, 1)
		assert.Equal(t, "b.txt", zr.File[0].Name)
	})
}
