package sql

import (
	"strings"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/tigerroll/surfin-dq/pkg/dq/adapter/database"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/config"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/repository"
	"github.com/tigerroll/surfin-dq/pkg/dq/engine/retry"
)

// ProcessDB is the connection to the database holding the config and log tables.
type ProcessDB struct {
	*gorm.DB
}

// NewProcessDBProvider opens the process database through the shared connection provider.
func NewProcessDBProvider(cfg *config.Config, provider *database.Provider) (ProcessDB, error) {
	db, err := provider.GetConnection(cfg.DQ.ProcessDB.Type, cfg.DQ.ProcessDB.Database)
	if err != nil {
		return ProcessDB{}, err
	}
	return ProcessDB{DB: db}, nil
}

// NewTablesProvider qualifies the process tables with the schema of the configured environment.
// SQLite has no schemas, so its tables stay unqualified.
func NewTablesProvider(cfg *config.Config) Tables {
	p := cfg.DQ.ProcessDB
	schema := cfg.ProcessSchema()
	if strings.EqualFold(p.Type, database.TypeSQLite) {
		schema = ""
	}
	return QualifiedTables(schema, p.JobConfigTable, p.TaskConfigTable, p.JobLogTable, p.TaskLogTable)
}

// AuditLogParams defines the dependencies for NewAuditLog.
type AuditLogParams struct {
	fx.In
	DB       ProcessDB
	Tables   Tables
	Executor *retry.Executor
	Cfg      *config.Config
}

// NewAuditLog creates the audit log, stamping updates in the batch timezone.
func NewAuditLog(p AuditLogParams) repository.AuditLog {
	loc := p.Cfg.Location()
	return NewSQLAuditLog(p.DB.DB, p.Tables, p.Executor, func() time.Time { return time.Now().In(loc) })
}

// NewConfigStore creates the config store.
func NewConfigStore(db ProcessDB, tables Tables) repository.ConfigStore {
	return NewSQLConfigStore(db.DB, tables)
}

// Module provides the SQL-backed AuditLog and ConfigStore.
var Module = fx.Options(
	fx.Provide(NewProcessDBProvider),
	fx.Provide(NewTablesProvider),
	fx.Provide(NewAuditLog),
	fx.Provide(NewConfigStore),
)
