package runner

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
)

// TerminationSignal is the cancellation cause of a run interrupted by the operating system.
// Cancel the run context with context.WithCancelCause and a *TerminationSignal.
type TerminationSignal struct {
	Signal os.Signal
}

// NewTerminationSignal wraps sig.
func NewTerminationSignal(sig os.Signal) *TerminationSignal {
	return &TerminationSignal{Signal: sig}
}

// Name returns SIGTERM, SIGINT or the upper-cased signal name.
func (t *TerminationSignal) Name() string {
	switch t.Signal {
	case syscall.SIGTERM:
		return "SIGTERM"
	case os.Interrupt:
		return "SIGINT"
	}
	return strings.ToUpper(t.Signal.String())
}

// Number returns the signal number, or -1 when the platform has none.
func (t *TerminationSignal) Number() int {
	if s, ok := t.Signal.(syscall.Signal); ok {
		return int(s)
	}
	return -1
}

func (t *TerminationSignal) Error() string {
	return fmt.Sprintf("received termination signal: %s", t.Name())
}

// terminationError builds the STOPPED error of a batch from the context's cancellation cause.
func terminationError(ctx context.Context, batchID string) error {
	cause := context.Cause(ctx)
	if sig, ok := cause.(*TerminationSignal); ok {
		return exception.NewDQError(moduleName, exception.KindTermination, fmt.Sprintf(
			"Job Batch ID '%s' is being forcibly terminated. Received termination signal: %s (Signal Number: %d).",
			batchID, sig.Name(), sig.Number()), nil)
	}
	return exception.NewDQError(moduleName, exception.KindTermination,
		fmt.Sprintf("Job Batch ID '%s' is being forcibly terminated: %v.", batchID, cause), cause)
}
