package database

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
)

// Supported database types. The names double as the credential prefix of environment variables.
const (
	TypeMySQL    = "MYSQL"
	TypePostgres = "POSTGRE"
	TypeSQLite   = "SQLITE"
)

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int
	MaxIdleConns           int
	ConnMaxLifetimeMinutes int
}

// DatabaseConfig holds the settings of one database connection.
type DatabaseConfig struct {
	Type     string // Type is MYSQL, POSTGRE or SQLITE.
	Host     string
	Port     int    // Port is 0 when the driver default applies.
	Database string // Database is the database name, or the file path for SQLITE.
	User     string
	Password string
	Sslmode  string // Sslmode applies to POSTGRE only.
	Pool     PoolConfig
}

// CredentialSource resolves the connection settings of a database by type and name.
type CredentialSource interface {
	Resolve(dbType, database string) (DatabaseConfig, error)
}

// EnvCredentialSource reads credentials from <TYPE>_USER_<ENV>, <TYPE>_PASS_<ENV>,
// <TYPE>_HOST_<ENV> and the optional <TYPE>_PORT_<ENV>.
type EnvCredentialSource struct {
	Environment string // Environment is the suffix, DEV or PROD.
	Pool        PoolConfig
	Lookup      func(key string) (string, bool) // Lookup defaults to os.LookupEnv.
}

// NewEnvCredentialSource creates an EnvCredentialSource for the given environment suffix.
func NewEnvCredentialSource(environment string, pool PoolConfig) *EnvCredentialSource {
	return &EnvCredentialSource{Environment: strings.ToUpper(environment), Pool: pool, Lookup: os.LookupEnv}
}

// Resolve builds the DatabaseConfig of database. SQLITE needs no credentials.
func (s *EnvCredentialSource) Resolve(dbType, database string) (DatabaseConfig, error) {
	dbType = strings.ToUpper(strings.TrimSpace(dbType))
	cfg := DatabaseConfig{Type: dbType, Database: database, Pool: s.Pool}
	if dbType == TypeSQLite {
		return cfg, nil
	}

	var err error
	if cfg.User, err = s.require(dbType + "_USER_" + s.Environment); err != nil {
		return DatabaseConfig{}, err
	}
	if cfg.Password, err = s.require(dbType + "_PASS_" + s.Environment); err != nil {
		return DatabaseConfig{}, err
	}
	if cfg.Host, err = s.require(dbType + "_HOST_" + s.Environment); err != nil {
		return DatabaseConfig{}, err
	}
	if raw, ok := s.lookup(dbType + "_PORT_" + s.Environment); ok && strings.TrimSpace(raw) != "" {
		port, perr := strconv.Atoi(strings.TrimSpace(raw))
		if perr != nil {
			return DatabaseConfig{}, exception.NewConfigurationError(moduleName,
				fmt.Sprintf("Environment value for %s_PORT_%s is not a port number: %s", dbType, s.Environment, raw), perr)
		}
		cfg.Port = port
	}
	return cfg, nil
}

func (s *EnvCredentialSource) lookup(key string) (string, bool) {
	if s.Lookup == nil {
		return os.LookupEnv(key)
	}
	return s.Lookup(key)
}

func (s *EnvCredentialSource) require(key string) (string, error) {
	v, _ := s.lookup(key)
	if v == "" {
		return "", exception.NewConfigurationError(moduleName,
			fmt.Sprintf("Environment value can't be empty for %s: %s, please check `.env` or `.bashrc` file.", key, v), nil)
	}
	return v, nil
}
