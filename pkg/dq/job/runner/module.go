package runner

import (
	"go.uber.org/fx"

	"github.com/tigerroll/surfin-dq/pkg/dq/component/diagnose"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/config"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/configmodel"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/repository"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/metrics"
	"github.com/tigerroll/surfin-dq/pkg/dq/infrastructure/archive"
	"github.com/tigerroll/surfin-dq/pkg/dq/listener/notification"
)

// OrchestratorParams defines the dependencies for NewOrchestratorProvider.
type OrchestratorParams struct {
	fx.In
	Config   *config.Config
	Loader   *configmodel.Reader
	Audit    repository.AuditLog
	Registry *diagnose.Registry
	Notifier notification.Notifier `optional:"true"`
	Archiver *archive.Archiver     `optional:"true"`
	Recorder metrics.Recorder
	Tracer   metrics.Tracer
}

// NewOrchestratorProvider assembles the Orchestrator from the application graph.
func NewOrchestratorProvider(p OrchestratorParams) *Orchestrator {
	deps := Dependencies{
		Loader:     p.Loader,
		Audit:      p.Audit,
		Algorithms: p.Registry,
		Notifier:   p.Notifier,
		Recorder:   p.Recorder,
		Tracer:     p.Tracer,
		Location:   p.Config.Location(),
		Production: p.Config.IsProduction(),
	}
	// A nil *Archiver must stay a nil interface.
	if p.Archiver != nil {
		deps.Archiver = p.Archiver
	}
	return NewOrchestrator(deps)
}

// Module provides the Orchestrator.
var Module = fx.Options(
	fx.Provide(NewOrchestratorProvider),
)
