package metrics

import (
	"go.uber.org/fx"
)

// NoOpModule provides do-nothing observability for commands and tests that run without the
// infrastructure metrics module.
var NoOpModule = fx.Options(
	fx.Provide(NewNoOpRecorder),
	fx.Provide(NewNoOpTracer),
)
