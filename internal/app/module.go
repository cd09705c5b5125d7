// Package app assembles the data-quality runner from its Fx modules and runs it
// either for a single job or as a long-running scheduler.
package app

import (
	"go.uber.org/fx"

	"github.com/tigerroll/surfin-dq/pkg/dq/adapter/database"
	"github.com/tigerroll/surfin-dq/pkg/dq/adapter/httpsource"
	"github.com/tigerroll/surfin-dq/pkg/dq/component/diagnose"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/config"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/configmodel"
	"github.com/tigerroll/surfin-dq/pkg/dq/engine/retry"
	"github.com/tigerroll/surfin-dq/pkg/dq/infrastructure/archive"
	"github.com/tigerroll/surfin-dq/pkg/dq/infrastructure/metrics"
	"github.com/tigerroll/surfin-dq/pkg/dq/infrastructure/repository/inmemory"
	"github.com/tigerroll/surfin-dq/pkg/dq/infrastructure/repository/sql"
	"github.com/tigerroll/surfin-dq/pkg/dq/job/runner"
	"github.com/tigerroll/surfin-dq/pkg/dq/listener/notification"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

// CoreModule wires every component an Orchestrator needs except the config store and audit log.
var CoreModule = fx.Options(
	logger.Module,
	config.Module,
	metrics.Module,
	retry.Module,
	database.Module,
	httpsource.Module,
	configmodel.Module,
	diagnose.Module,
	notification.Module,
	archive.Module,
	runner.Module,
)

// Module is CoreModule backed by the process database.
var Module = fx.Options(
	CoreModule,
	sql.Module,
)

// InMemoryModule is CoreModule backed by in-memory stores. Nothing survives the process.
var InMemoryModule = fx.Options(
	CoreModule,
	inmemory.Module,
)
