package database

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

// DialectorFactory generates a gorm.Dialector from a DatabaseConfig.
type DialectorFactory func(cfg DatabaseConfig) (gorm.Dialector, error)

var (
	dialectorRegistry = make(map[string]DialectorFactory)
	dialectorMutex    sync.RWMutex
)

func init() {
	RegisterDialector(TypeMySQL, func(cfg DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(MySQLDSN(cfg)), nil
	})
	RegisterDialector(TypePostgres, func(cfg DatabaseConfig) (gorm.Dialector, error) {
		return postgres.Open(PostgresDSN(cfg)), nil
	})
	RegisterDialector(TypeSQLite, func(cfg DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, fmt.Errorf("SQLite database path cannot be empty")
		}
		return sqlite.Open(cfg.Database), nil
	})
}

// RegisterDialector registers a DialectorFactory for the given database type.
func RegisterDialector(dbType string, factory DialectorFactory) {
	dialectorMutex.Lock()
	defer dialectorMutex.Unlock()
	dbType = strings.ToUpper(dbType)
	if _, exists := dialectorRegistry[dbType]; exists {
		logger.Warnf("Dialector for type '%s' already registered. Overwriting.", dbType)
	}
	dialectorRegistry[dbType] = factory
}

// GetDialectorFactory retrieves the DialectorFactory of a database type.
func GetDialectorFactory(dbType string) (DialectorFactory, error) {
	dialectorMutex.RLock()
	defer dialectorMutex.RUnlock()
	factory, ok := dialectorRegistry[strings.ToUpper(dbType)]
	if !ok {
		return nil, fmt.Errorf("Unsupported database type detected: %s, supported databases: %s.",
			dbType, strings.Join(registeredTypes(), ", "))
	}
	return factory, nil
}

func registeredTypes() []string {
	names := make([]string, 0, len(dialectorRegistry))
	for name := range dialectorRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MySQLDSN renders the go-sql-driver DSN. Time columns are parsed into time.Time.
func MySQLDSN(c DatabaseConfig) string {
	dsn := gomysql.NewConfig()
	dsn.User = c.User
	dsn.Passwd = c.Password
	dsn.Net = "tcp"
	dsn.Addr = c.Host
	if c.Port > 0 {
		dsn.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	}
	dsn.DBName = c.Database
	dsn.ParseTime = true
	dsn.Params = map[string]string{"charset": "utf8mb4"}
	return dsn.FormatDSN()
}

// PostgresDSN renders a keyword/value DSN. Values are quoted so credentials may contain spaces.
func PostgresDSN(c DatabaseConfig) string {
	port := c.Port
	if port == 0 {
		port = 5432
	}
	sslmode := c.Sslmode
	if sslmode == "" {
		sslmode = "prefer"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		pgQuote(c.Host), port, pgQuote(c.User), pgQuote(c.Password), pgQuote(c.Database), sslmode)
}

func pgQuote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
