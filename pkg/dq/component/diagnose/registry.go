package diagnose

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
)

// Key selects an algorithm.
type Key struct {
	ConfigType model.ConfigType
	TaskRule   model.TaskRule
}

func (k Key) String() string {
	return fmt.Sprintf("(%s, %s)", k.ConfigType, k.TaskRule)
}

// Factory builds a fresh algorithm bound to deps.
type Factory func(deps Dependencies) Algorithm

// defaultFactories is the fixed dispatch table.
var defaultFactories = map[Key]Factory{
	{model.ConfigTypeAPI, model.TaskRuleMatchCount}:       NewMatchCountAPITable,
	{model.ConfigTypeTBL, model.TaskRuleMatchCount}:       NewMatchCountTables,
	{model.ConfigTypeTBL, model.TaskRuleCheckColumns}:     NewCheckColumns,
	{model.ConfigTypeTBL, model.TaskRuleCheckValues}:      NewCheckValues,
	{model.ConfigTypeTBL, model.TaskRuleCheckNulls}:       NewCheckNulls,
	{model.ConfigTypeTBL, model.TaskRuleCheckDuplicate}:   NewCheckDuplicate,
	{model.ConfigTypeTBL, model.TaskRuleMatchAggregation}: NewMatchAggregation,
	{model.ConfigTypeTBL, model.TaskRuleMatchRow}:         NewMatchRow,
	{model.ConfigTypeTBL, model.TaskRuleCheckThreshold}:   NewCheckThreshold,
}

// Registry resolves algorithms. It holds no algorithm state: every Resolve builds a new instance.
type Registry struct {
	deps      Dependencies
	factories map[Key]Factory
}

// NewRegistry creates a registry over the default dispatch table.
//
// Parameters:
//
//	deps: The data sources handed to every algorithm the registry builds.
//
// Returns:
//
//	*Registry: The registry.
func NewRegistry(deps Dependencies) *Registry {
	factories := make(map[Key]Factory, len(defaultFactories))
	for k, f := range defaultFactories {
		factories[k] = f
	}
	return &Registry{deps: deps, factories: factories}
}

// Register overrides or adds the factory for key.
func (r *Registry) Register(key Key, factory Factory) {
	r.factories[key] = factory
}

// Supported returns the registered keys in a stable order.
func (r *Registry) Supported() []Key {
	keys := make([]Key, 0, len(r.factories))
	for k := range r.factories {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Resolve returns a new algorithm for the combination.
//
// Parameters:
//
//	configType: The task's config_type.
//	rule: The task's task_rule.
//
// Returns:
//
//	Algorithm: A fresh instance bound to the registry's dependencies.
//	error: An UnsupportedCombinationError naming the supported set when nothing is registered.
func (r *Registry) Resolve(configType model.ConfigType, rule model.TaskRule) (Algorithm, error) {
	factory, ok := r.factories[Key{ConfigType: configType, TaskRule: rule}]
	if !ok {
		supported := make([]string, 0, len(r.factories))
		for _, k := range r.Supported() {
			supported = append(supported, k.String())
		}
		return nil, exception.NewDQErrorf(moduleName, exception.KindUnsupportedCombination,
			"Unsupported combination: config_type '%s' and task_rule '%s'. Supported combinations: %s",
			configType, rule, strings.Join(supported, ", "))
	}
	return factory(r.deps), nil
}
