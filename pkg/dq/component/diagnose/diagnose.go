// Package diagnose implements the comparison algorithms a task can request and the
// registry that selects one for a (config_type, task_rule) pair.
//
// Every algorithm fetches its data through a [TableSource] or [APISource], evaluates
// expectations over it and returns a [model.ReconciliationResult]. An algorithm that cannot
// fetch or evaluate its data returns an error instead of a failed result.
package diagnose

import (
	"context"
	"fmt"
	"strings"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/expectation"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/tabular"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
)

const moduleName = "diagnose"

// TableSource materializes the rows a table reference addresses.
type TableSource interface {
	// ReadTable executes ref.ReadQuery() against the referenced database.
	ReadTable(ctx context.Context, ref model.TableRef) (*tabular.Table, error)
}

// APISource fetches a JSON document from an authenticated HTTP endpoint.
type APISource interface {
	// Fetch performs a GET on baseURL authenticated by the strategy registered for authKey
	// and returns the decoded body.
	Fetch(ctx context.Context, baseURL string, authKey model.AuthKey) (interface{}, error)
}

// Input carries the validated configuration of the task being evaluated.
type Input struct {
	TaskName  string
	Source    model.SourceConfig
	Target    model.TargetConfig
	Parameter model.TaskParameter
}

// InputFromTask builds the Input of task.
func InputFromTask(task *model.TaskConfig) Input {
	return Input{TaskName: task.TaskName, Source: task.SrcConfig, Target: task.TgtConfig, Parameter: task.Parameter}
}

// Algorithm evaluates one task.
type Algorithm interface {
	// Evaluate runs the comparison and returns the reconciliation envelope.
	Evaluate(ctx context.Context, in Input) (*model.ReconciliationResult, error)
}

// AlgorithmFunc adapts a function to [Algorithm].
type AlgorithmFunc func(ctx context.Context, in Input) (*model.ReconciliationResult, error)

// Evaluate calls f.
func (f AlgorithmFunc) Evaluate(ctx context.Context, in Input) (*model.ReconciliationResult, error) {
	return f(ctx, in)
}

// Dependencies are the collaborators algorithms fetch data through.
type Dependencies struct {
	Tables TableSource
	API    APISource
}

func sourceTable(in Input) (model.TableRef, error) {
	src, ok := in.Source.(*model.SourceTable)
	if !ok || src == nil {
		return model.TableRef{}, unexpectedConfig(in.TaskName, "src_config", "a source table", in.Source)
	}
	return src.Ref(), nil
}

func sourceAPI(in Input) (*model.SourceAPI, error) {
	src, ok := in.Source.(*model.SourceAPI)
	if !ok || src == nil {
		return nil, unexpectedConfig(in.TaskName, "src_config", "a source API", in.Source)
	}
	return src, nil
}

func targetTable(in Input) (model.TableRef, error) {
	tgt, ok := in.Target.(*model.TargetTable)
	if !ok || tgt == nil {
		return model.TableRef{}, unexpectedConfig(in.TaskName, "tgt_config", "a target table", in.Target)
	}
	return tgt.Ref(), nil
}

func parameter[T model.TaskParameter](in Input) (T, error) {
	p, ok := in.Parameter.(T)
	if !ok {
		var zero T
		return zero, unexpectedConfig(in.TaskName, "task_parameter", fmt.Sprintf("%T", zero), in.Parameter)
	}
	return p, nil
}

func unexpectedConfig(taskName, field, want string, got interface{}) error {
	return exception.NewDQErrorf(moduleName, exception.KindConfiguration,
		"Task '%s' expects %s as %s, got %T", taskName, want, field, got)
}

func readTable(ctx context.Context, deps Dependencies, ref model.TableRef) (*tabular.Table, error) {
	if deps.Tables == nil {
		return nil, exception.NewDQErrorf(moduleName, exception.KindConfiguration, "no table source configured")
	}
	t, err := deps.Tables.ReadTable(ctx, ref)
	if err != nil {
		if exception.KindOf(err) != exception.KindUnhandled {
			return nil, err
		}
		return nil, exception.NewDQErrorf(moduleName, exception.KindDataFetch, "Failed to read '%s'", ref.Identifier(), err)
	}
	return t, nil
}

func dataError(ref model.TableRef, err error) error {
	return exception.NewDQErrorf(moduleName, exception.KindDataFetch, "Failed to evaluate '%s'", ref.Identifier(), err)
}

// envelope maps suite results onto the reconciliation envelope, one metrics map per result.
func envelope(res *expectation.SuiteResult, metrics func(i int, r expectation.Result) map[string]interface{}) *model.ReconciliationResult {
	out := make([]model.AssertionResult, len(res.Results))
	for i, r := range res.Results {
		out[i] = model.AssertionResult{Success: r.Success, Result: metrics(i, r)}
	}
	rec := model.NewReconciliationResult(out...)
	rec.Success = res.Success
	return rec
}

// quoteList renders names the way error messages list columns: ['a', 'b'].
func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
