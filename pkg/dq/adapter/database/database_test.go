package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/tabular"
	"github.com/tigerroll/surfin-dq/pkg/dq/engine/retry"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
)

type fakeCredentials struct {
	cfg   DatabaseConfig
	err   error
	calls int
}

func (f *fakeCredentials) Resolve(dbType, database string) (DatabaseConfig, error) {
	f.calls++
	if f.err != nil {
		return DatabaseConfig{}, f.err
	}
	return f.cfg, nil
}

func testExecutor(maxAttempts int) *retry.Executor {
	return retry.NewExecutor(retry.NewDefaultRetryPolicyFactory().Create(maxAttempts, 0, nil)).
		WithSleeper(func(context.Context, time.Duration) error { return nil })
}

func strPtr(s string) *string { return &s }

func envLookup(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestEnvCredentialSourceResolve(t *testing.T) {
	src := NewEnvCredentialSource("prod", PoolConfig{MaxOpenConns: 3})
	src.Lookup = envLookup(map[string]string{
		"POSTGRE_USER_PROD": "dq",
		"POSTGRE_PASS_PROD": "s3cret",
		"POSTGRE_HOST_PROD": "pg.internal",
		"POSTGRE_PORT_PROD": "6432",
		"MYSQL_USER_PROD":   "dq",
		"MYSQL_PASS_PROD":   "s3cret",
	})

	cfg, err := src.Resolve("postgre", "mgdb")
	require.NoError(t, err)
	assert.Equal(t, DatabaseConfig{
		Type: TypePostgres, Host: "pg.internal", Port: 6432, Database: "mgdb",
		User: "dq", Password: "s3cret", Pool: PoolConfig{MaxOpenConns: 3},
	}, cfg)

	_, err = src.Resolve("MYSQL", "sales")
	require.Error(t, err)
	assert.True(t, exception.IsKind(err, exception.KindConfiguration))
	assert.Contains(t, err.Error(), "Environment value can't be empty for MYSQL_HOST_PROD")

	cfg, err = src.Resolve("SQLITE", "/tmp/dq.db")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/dq.db", cfg.Database)
	assert.Empty(t, cfg.User)
}

func TestEnvCredentialSourceRejectsBadPort(t *testing.T) {
	src := NewEnvCredentialSource("DEV", PoolConfig{})
	src.Lookup = envLookup(map[string]string{
		"MYSQL_USER_DEV": "u", "MYSQL_PASS_DEV": "p", "MYSQL_HOST_DEV": "h", "MYSQL_PORT_DEV": "abc",
	})
	_, err := src.Resolve(TypeMySQL, "sales")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MYSQL_PORT_DEV is not a port number")
}

func TestDSNs(t *testing.T) {
	my := MySQLDSN(DatabaseConfig{User: "dq", Password: "pw", Host: "db.local", Port: 3307, Database: "sales"})
	assert.Contains(t, my, "dq:pw@tcp(db.local:3307)/sales?")
	assert.Contains(t, my, "parseTime=true")
	assert.Contains(t, my, "charset=utf8mb4")

	pg := PostgresDSN(DatabaseConfig{User: "dq", Password: "p w'x", Host: "pg", Database: "mgdb"})
	assert.Equal(t, `host='pg' port=5432 user='dq' password='p w\'x' dbname='mgdb' sslmode=prefer`, pg)
}

func TestGetDialectorFactoryUnknownType(t *testing.T) {
	_, err := GetDialectorFactory("ORACLE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unsupported database type detected: ORACLE, supported databases: MYSQL, POSTGRE, SQLITE.")
}

func TestProviderCachesConnections(t *testing.T) {
	creds := &fakeCredentials{cfg: DatabaseConfig{Type: TypeSQLite, Database: "file:provider_cache?mode=memory&cache=shared"}}
	p := NewProvider(creds)
	defer p.CloseAll()

	first, err := p.GetConnection("sqlite", "cache")
	require.NoError(t, err)
	second, err := p.GetConnection("SQLITE", "cache")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, creds.calls)

	_, err = p.ForceReconnect("SQLITE", "cache")
	require.NoError(t, err)
	assert.Equal(t, 2, creds.calls)
	require.NoError(t, p.CloseAll())
}

func openSQLite(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: NewGormLogger()})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func TestTableReaderReadsWholeTable(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, db.Exec(`CREATE TABLE orders (id INTEGER, customer TEXT, amount REAL)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO orders VALUES (1, 'a', 10.5), (2, NULL, 7), (3, 'c', NULL)`).Error)

	p := NewProvider(&fakeCredentials{err: errors.New("unused")})
	p.Register(string(model.DBTypeMySQL), "sales", db)
	reader := NewTableReader(p, testExecutor(1))

	table, err := reader.ReadTable(context.Background(), model.TableRef{DBType: model.DBTypeMySQL, DBName: "sales", Table: "orders"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "customer", "amount"}, table.Columns)
	require.Equal(t, 3, table.Len())
	assert.Equal(t, []interface{}{int64(1), "a", 10.5}, table.Rows[0])
	assert.Nil(t, table.Rows[1][1])
	assert.Nil(t, table.Rows[2][2])
}

func TestTableReaderRunsConfiguredQuery(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	p := NewProvider(&fakeCredentials{err: errors.New("unused")})
	p.Register(string(model.DBTypePostgres), "mgdb", db)
	reader := NewTableReader(p, testExecutor(1))

	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("INT4", int64(0)),
		sqlmock.NewColumn("amount").OfType("NUMERIC", ""),
	).AddRow(int64(1), []byte("10.50")).AddRow(int64(2), nil)
	mock.ExpectQuery("SELECT id, amount FROM sales.orders WHERE amount > 0").WillReturnRows(rows)

	ref := model.TableRef{
		DBType: model.DBTypePostgres, DBName: "mgdb", Schema: strPtr("sales"), Table: "orders",
		Query: strPtr("SELECT id, amount FROM sales.orders WHERE amount > 0"),
	}
	table, err := reader.ReadTable(context.Background(), ref)
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, int64(1), table.Rows[0][0])
	assert.IsType(t, &apd.Decimal{}, table.Rows[0][1])
	assert.Equal(t, "10.5", tabular.Text(table.Rows[0][1]))
	assert.Equal(t, []interface{}{int64(2), nil}, table.Rows[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableReaderSurfacesQueryErrors(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	p := NewProvider(&fakeCredentials{err: errors.New("unused")})
	p.Register(string(model.DBTypePostgres), "mgdb", db)
	reader := NewTableReader(p, testExecutor(3))

	mock.ExpectQuery("SELECT").WillReturnError(errors.New(`relation "sales.missing" does not exist`))

	_, err = reader.ReadTable(context.Background(), model.TableRef{
		DBType: model.DBTypePostgres, DBName: "mgdb", Schema: strPtr("sales"), Table: "missing",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableReaderGivesUpOnConnectivityFailures(t *testing.T) {
	creds := &fakeCredentials{err: exception.NewTransientError(moduleName, "dial tcp: connection refused", nil)}
	reader := NewTableReader(NewProvider(creds), testExecutor(2))

	_, err := reader.ReadTable(context.Background(), model.TableRef{DBType: model.DBTypeMySQL, DBName: "sales", Table: "orders"})
	require.Error(t, err)
	assert.True(t, exception.IsKind(err, exception.KindMaxRetriesExceeded))
	// Each failed read also attempts one reconnect.
	assert.Equal(t, 4, creds.calls)
}

func TestDecodeDecimal(t *testing.T) {
	wide, ok := decodeDecimal([]byte("12345678901234567890.12345")).(*apd.Decimal)
	require.True(t, ok)
	assert.Equal(t, "12345678901234567890.12345", wide.Text('f'))
	assert.Equal(t, "10.5", tabular.Text(decodeDecimal([]byte("10.50"))))
	assert.True(t, tabular.Equal(int64(3), decodeDecimal("3")))
	assert.Equal(t, "NaN?", decodeDecimal("NaN?"))
	assert.Equal(t, "NaN", decodeDecimal("NaN"))
	assert.Nil(t, decodeDecimal(nil))
	assert.Equal(t, int64(4), decodeDecimal(int64(4)))
}

func TestIsStatementTrace(t *testing.T) {
	assert.True(t, isStatementTrace("[1.2ms] [rows:3] SELECT * FROM orders"))
	assert.False(t, isStatementTrace("failed to initialize database"))
}
