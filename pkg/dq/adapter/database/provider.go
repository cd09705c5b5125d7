// Package database opens and caches gorm connections to the process database and to the
// source and target databases tasks read from, and materializes query results as tables.
package database

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

const moduleName = "database"

type connectionKey struct {
	dbType   string
	database string
}

func (k connectionKey) String() string {
	return k.dbType + "/" + k.database
}

// Provider hands out one connection per (database type, database name) and keeps it for the
// lifetime of the process.
type Provider struct {
	credentials CredentialSource
	connections map[connectionKey]*gorm.DB
	mu          sync.RWMutex
}

// NewProvider creates a Provider resolving connection settings through credentials.
//
// Parameters:
//
//	credentials: Resolves host, port and login of a database on first use.
//
// Returns:
//
//	*Provider: A provider with an empty connection cache.
func NewProvider(credentials CredentialSource) *Provider {
	return &Provider{
		credentials: credentials,
		connections: make(map[connectionKey]*gorm.DB),
	}
}

func newKey(dbType, database string) connectionKey {
	return connectionKey{dbType: strings.ToUpper(strings.TrimSpace(dbType)), database: database}
}

// GetConnection retrieves an existing connection or establishes a new one.
func (p *Provider) GetConnection(dbType, database string) (*gorm.DB, error) {
	key := newKey(dbType, database)

	p.mu.RLock()
	db, ok := p.connections[key]
	p.mu.RUnlock()
	if ok {
		return db, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double check (DCL)
	if db, ok = p.connections[key]; ok {
		return db, nil
	}
	return p.createAndStoreConnection(key)
}

// Register stores an already opened connection under (dbType, database).
// Existing entries are replaced without being closed.
func (p *Provider) Register(dbType, database string, db *gorm.DB) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connections[newKey(dbType, database)] = db
}

func (p *Provider) createAndStoreConnection(key connectionKey) (*gorm.DB, error) {
	cfg, err := p.credentials.Resolve(key.dbType, key.database)
	if err != nil {
		return nil, err
	}
	db, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	p.connections[key] = db
	logger.Infof("Established new DB connection: %s", key)
	return db, nil
}

// ForceReconnect closes the cached connection of (dbType, database), if any, and opens a new one.
func (p *Provider) ForceReconnect(dbType, database string) (*gorm.DB, error) {
	key := newKey(dbType, database)

	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.connections[key]; ok {
		if err := closeDB(existing); err != nil {
			logger.Warnf("Failed to close existing connection '%s' before reconnect: %v", key, err)
		}
		delete(p.connections, key)
	}
	db, err := p.createAndStoreConnection(key)
	if err != nil {
		return nil, err
	}
	logger.Infof("Re-established DB connection: %s", key)
	return db, nil
}

// CloseAll closes every cached connection. The last close error is returned.
func (p *Provider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	for key, db := range p.connections {
		if err := closeDB(db); err != nil {
			logger.Errorf("Failed to close connection '%s': %v", key, err)
			lastErr = err
		}
		delete(p.connections, key)
	}
	return lastErr
}

func connect(cfg DatabaseConfig) (*gorm.DB, error) {
	factory, err := GetDialectorFactory(cfg.Type)
	if err != nil {
		return nil, exception.NewConfigurationError(moduleName, err.Error(), nil)
	}
	dialector, err := factory(cfg)
	if err != nil {
		return nil, exception.NewConfigurationError(moduleName,
			fmt.Sprintf("failed to create dialector for %s", cfg.Type), err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: NewGormLogger()})
	if err != nil {
		return nil, exception.NewTransientError(moduleName,
			fmt.Sprintf("failed to open connection to %s database '%s'", cfg.Type, cfg.Database), err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg.Pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	}
	if cfg.Pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	}
	if cfg.Pool.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.Pool.ConnMaxLifetimeMinutes) * time.Minute)
	}
	return db, nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
