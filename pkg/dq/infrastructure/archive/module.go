package archive

import (
	"go.uber.org/fx"

	"github.com/tigerroll/surfin-dq/pkg/dq/adapter/storage"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/config"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/repository"
)

// ArchiverParams defines the dependencies for NewArchiverProvider.
type ArchiverParams struct {
	fx.In
	Config *config.Config
	Audit  repository.AuditLog
	Conn   storage.Connection `optional:"true"`
}

// NewArchiverProvider returns nil when archiving is disabled.
func NewArchiverProvider(p ArchiverParams) (*Archiver, error) {
	cfg := p.Config.DQ.Archive
	if !cfg.Enabled || p.Conn == nil {
		return nil, nil
	}
	return NewArchiver(p.Audit, p.Conn, cfg.Storage.BucketName, cfg.Prefix, cfg.Compression)
}

// Module provides the archive storage and the *Archiver.
var Module = fx.Options(
	storage.Module,
	fx.Provide(NewArchiverProvider),
)
