package storage

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/fx"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/config"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
)

// NewConnection opens the backend selected by cfg.Type.
func NewConnection(ctx context.Context, cfg config.StorageConfig) (Connection, error) {
	switch strings.ToLower(cfg.Type) {
	case "", TypeLocal:
		return NewLocalAdapter(cfg)
	case TypeGCS:
		return NewGCSAdapter(ctx, cfg)
	default:
		return nil, exception.NewConfigurationError(moduleName, fmt.Sprintf("Unsupported storage type: %s", cfg.Type), nil)
	}
}

// NewConnectionProvider opens the archive storage and closes it on stop.
// It returns a nil Connection when archiving is disabled.
func NewConnectionProvider(lc fx.Lifecycle, cfg *config.Config) (Connection, error) {
	if !cfg.DQ.Archive.Enabled {
		return nil, nil
	}
	conn, err := NewConnection(context.Background(), cfg.DQ.Archive.Storage)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return conn.Close()
		},
	})
	return conn, nil
}

// Module provides the archive storage Connection.
var Module = fx.Options(
	fx.Provide(NewConnectionProvider),
)
