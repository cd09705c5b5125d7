package inmemory

import (
	"go.uber.org/fx"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/repository"
)

// Module is an Fx module that provides the in-memory AuditLog and ConfigStore.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewInMemoryAuditLog,
			fx.As(new(repository.AuditLog)),
		),
		fx.Annotate(
			NewInMemoryConfigStore,
			fx.As(new(repository.ConfigStore)),
		),
	),
)
