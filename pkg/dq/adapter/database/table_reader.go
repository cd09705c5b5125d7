package database

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/tabular"
	"github.com/tigerroll/surfin-dq/pkg/dq/engine/retry"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

// TableReader runs the read query of a table reference and returns its rows.
type TableReader struct {
	provider *Provider
	executor *retry.Executor
}

// NewTableReader creates a TableReader. Connectivity failures are retried by executor and
// a failed attempt drops the cached connection so the next one reconnects.
func NewTableReader(provider *Provider, executor *retry.Executor) *TableReader {
	return &TableReader{provider: provider, executor: executor}
}

// ReadTable executes ref.ReadQuery() on the database ref names.
func (r *TableReader) ReadTable(ctx context.Context, ref model.TableRef) (*tabular.Table, error) {
	query := ref.ReadQuery()
	operation := "read_table " + ref.Identifier()
	return retry.DoValue(ctx, r.executor, operation, func(ctx context.Context) (*tabular.Table, error) {
		t, err := r.read(ctx, ref, query)
		if err != nil && exception.IsTransient(err) {
			if _, rerr := r.provider.ForceReconnect(string(ref.DBType), ref.DBName); rerr != nil {
				logger.Warnf("Reconnect to %s/%s failed: %v", ref.DBType, ref.DBName, rerr)
			}
		}
		return t, err
	})
}

func (r *TableReader) read(ctx context.Context, ref model.TableRef, query string) (*tabular.Table, error) {
	db, err := r.provider.GetConnection(string(ref.DBType), ref.DBName)
	if err != nil {
		return nil, err
	}

	logger.Debugf("Read query for '%s': %s", ref.Identifier(), query)
	rows, err := db.WithContext(ctx).Raw(query).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	t, err := scanTable(rows)
	if err != nil {
		return nil, err
	}
	logger.Debugf("Read %d row(s) from '%s'", t.Len(), ref.Identifier())
	return t, nil
}

// scanTable drains rows into a table. DECIMAL and NUMERIC values arrive as text and are
// kept as exact decimals so wide values survive aggregation and comparison.
func scanTable(rows *sql.Rows) (*tabular.Table, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	decimal := make([]bool, len(types))
	for i, ct := range types {
		name := strings.ToUpper(ct.DatabaseTypeName())
		decimal[i] = name == "DECIMAL" || name == "NUMERIC" || name == "NEWDECIMAL"
	}

	var data [][]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if decimal[i] {
				values[i] = decodeDecimal(v)
			}
		}
		data = append(data, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tabular.New(columns, data), nil
}

// decodeDecimal keeps DECIMAL/NUMERIC text exact as an *apd.Decimal.
func decodeDecimal(v interface{}) interface{} {
	var text string
	switch x := v.(type) {
	case []byte:
		text = string(x)
	case string:
		text = x
	default:
		return v
	}
	d, _, err := apd.NewFromString(strings.TrimSpace(text))
	if err != nil || d.Form != apd.Finite {
		return text
	}
	return d
}
