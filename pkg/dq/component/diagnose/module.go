package diagnose

import "go.uber.org/fx"

// RegistryParams defines the dependencies for NewRegistryProvider.
// The API source is optional so table-only deployments can leave the HTTP source out.
type RegistryParams struct {
	fx.In
	Tables TableSource
	API    APISource `optional:"true"`
}

// NewRegistryProvider creates the default dispatch table.
func NewRegistryProvider(p RegistryParams) *Registry {
	return NewRegistry(Dependencies{Tables: p.Tables, API: p.API})
}

// Module provides the algorithm Registry.
var Module = fx.Options(
	fx.Provide(NewRegistryProvider),
)
