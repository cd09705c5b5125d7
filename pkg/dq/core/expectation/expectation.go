// Package expectation evaluates declarative assertions against an in-memory table.
//
// An Expectation checks one property of a data asset and reports whether it holds together
// with what was observed. Expectations are grouped into a Suite that runs them in order.
package expectation

import (
	"context"
	"fmt"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/tabular"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

// Result is the outcome of one expectation.
type Result struct {
	Expectation string
	Success     bool
	// ObservedValue is the measured property: a count, a column list or a value set.
	ObservedValue interface{}
	// ElementCount is the number of rows inspected by column expectations.
	ElementCount int64
	// UnexpectedCount is the number of rows that violated a column expectation.
	UnexpectedCount int64
	Details         map[string]interface{}
}

// Expectation is a single assertion over a table.
type Expectation interface {
	// Name identifies the expectation in logs and results.
	Name() string
	// Validate evaluates the expectation. An error means it could not be evaluated at all,
	// for example because a column is missing.
	Validate(t *tabular.Table) (Result, error)
}

// SuiteResult aggregates the results of a suite run.
type SuiteResult struct {
	Success bool
	Results []Result
}

// Suite is an ordered set of expectations evaluated against one data asset.
type Suite struct {
	name         string
	expectations []Expectation
}

// NewSuite creates an empty suite for the named data asset.
func NewSuite(name string) *Suite {
	return &Suite{name: name}
}

// Add appends an expectation.
func (s *Suite) Add(e Expectation) *Suite {
	s.expectations = append(s.expectations, e)
	return s
}

// Len returns the number of expectations.
func (s *Suite) Len() int { return len(s.expectations) }

// Run evaluates every expectation against t. The first expectation that cannot be
// evaluated aborts the run with a DataFetchError.
func (s *Suite) Run(ctx context.Context, t *tabular.Table) (*SuiteResult, error) {
	out := &SuiteResult{Success: true, Results: make([]Result, 0, len(s.expectations))}
	for _, e := range s.expectations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := e.Validate(t)
		if err != nil {
			return nil, exception.NewDQError("expectation", exception.KindDataFetch,
				fmt.Sprintf("Expectation '%s' on '%s' raised an exception", e.Name(), s.name), err)
		}
		res.Expectation = e.Name()
		logger.Debugf("Expectation '%s' on '%s': success=%t observed=%v", e.Name(), s.name, res.Success, res.ObservedValue)
		out.Success = out.Success && res.Success
		out.Results = append(out.Results, res)
	}
	return out, nil
}
