package database

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/surfin-dq/pkg/dq/component/diagnose"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/config"
)

// NewCredentialSourceProvider reads credentials for the configured environment.
func NewCredentialSourceProvider(cfg *config.Config) CredentialSource {
	pool := cfg.DQ.ProcessDB.Pool
	return NewEnvCredentialSource(cfg.EnvironmentSuffix(), PoolConfig{
		MaxOpenConns:           pool.MaxOpenConns,
		MaxIdleConns:           pool.MaxIdleConns,
		ConnMaxLifetimeMinutes: pool.ConnMaxLifetimeMinutes,
	})
}

// NewProviderWithLifecycle creates the Provider and closes its connections on shutdown.
func NewProviderWithLifecycle(lc fx.Lifecycle, credentials CredentialSource) *Provider {
	p := NewProvider(credentials)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return p.CloseAll()
		},
	})
	return p
}

// Module provides the connection provider and the table source of the comparison algorithms.
var Module = fx.Options(
	fx.Provide(NewCredentialSourceProvider),
	fx.Provide(NewProviderWithLifecycle),
	fx.Provide(fx.Annotate(
		NewTableReader,
		fx.As(new(diagnose.TableSource)),
	)),
)
