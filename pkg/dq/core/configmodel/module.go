package configmodel

import (
	"go.uber.org/fx"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/config"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/repository"
	"github.com/tigerroll/surfin-dq/pkg/dq/engine/retry"
)

// NewReaderProvider builds the Reader with the organizational email domain and timezone of cfg.
func NewReaderProvider(cfg *config.Config, store repository.ConfigStore, executor *retry.Executor) *Reader {
	return NewReader(store, Options{
		EmailDomain: cfg.DQ.Validation.EmailDomain,
		Location:    cfg.Location(),
	}, executor)
}

// Module provides the job configuration Reader.
var Module = fx.Options(
	fx.Provide(NewReaderProvider),
)
