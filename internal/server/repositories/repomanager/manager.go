// Package repomanager vends repository implementations bound to a DBTX, so a
// service can run several repositories inside one transaction, and exposes the
// schema migration hook.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/mpetrovs/cloudvault/internal/dbx"
	"github.com/mpetrovs/cloudvault/internal/server/repositories/files"
	"github.com/mpetrovs/cloudvault/internal/server/repositories/uploads"
)

// RepositoryManager constructs repositories on demand. Passing a *sql.Tx as
// the DBTX makes every repository call part of that transaction.
type RepositoryManager interface {
	Files(db dbx.DBTX) files.Repository
	Uploads(db dbx.DBTX) uploads.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
