package model

// AssertionResult is the outcome of a single assertion within a task.
type AssertionResult struct {
	Success bool                   `json:"success"`
	Result  map[string]interface{} `json:"result"`
}

// ReconciliationResult is the common envelope every comparison algorithm returns.
type ReconciliationResult struct {
	Success bool              `json:"success"`
	Results []AssertionResult `json:"results"`
}

// NewReconciliationResult builds an envelope that succeeds only if every assertion succeeded.
func NewReconciliationResult(results ...AssertionResult) *ReconciliationResult {
	success := true
	for _, r := range results {
		success = success && r.Success
	}
	if results == nil {
		results = []AssertionResult{}
	}
	return &ReconciliationResult{Success: success, Results: results}
}

// TaskStatus maps the envelope onto a task status.
func (r *ReconciliationResult) TaskStatus() TaskStatus {
	if r.Success {
		return TaskStatusSuccess
	}
	return TaskStatusFailure
}
