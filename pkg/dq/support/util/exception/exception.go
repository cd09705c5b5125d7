// Package exception defines the error taxonomy of the data-quality runner.
// Every fatal path of a job run is classified into one Kind, and that Kind is what
// ends up in the job_exception_type column of the job log.
package exception

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"syscall"

	"github.com/go-sql-driver/mysql"
)

// Kind classifies a DQError.
type Kind string

const (
	// KindConfiguration marks malformed or unmapped job and task configuration.
	KindConfiguration Kind = "ConfigurationError"
	// KindConcurrencyTimeout marks another active run still detected after the wait window.
	KindConcurrencyTimeout Kind = "ConcurrencyTimeoutError"
	// KindTransient marks connectivity failures that a retry may cure.
	KindTransient Kind = "TransientConnectivityError"
	// KindMaxRetriesExceeded marks a transient failure that outlived its retry budget.
	KindMaxRetriesExceeded Kind = "MaxRetriesExceededError"
	// KindUnsupportedCombination marks a (config_type, task_rule) pair with no algorithm or schema.
	KindUnsupportedCombination Kind = "UnsupportedCombinationError"
	// KindDataFetch marks data that could not be read or interpreted by an algorithm.
	KindDataFetch Kind = "DataFetchError"
	// KindTermination marks an external termination signal.
	KindTermination Kind = "TerminationSignal"
	// KindUnhandled is the catch-all for anything else.
	KindUnhandled Kind = "UnhandledError"
)

// errorRegistry maps error names usable in configuration (e.g. retry.retryable_errors)
// to prototype errors compared with errors.Is.
var errorRegistry = make(map[string]error)

// registryMutex protects access to errorRegistry.
var registryMutex sync.RWMutex

// RegisterErrorType registers an error prototype under a name.
// It panics if name is empty or prototype is nil.
func RegisterErrorType(name string, prototype error) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if name == "" {
		panic("Error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("Cannot register nil prototype for name: %s", name))
	}
	errorRegistry[name] = prototype
}

// IsErrorTypeRegistered checks if the specified error type name is registered.
func IsErrorTypeRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, ok := errorRegistry[name]
	return ok
}

// DQError is the error type raised by the runner's own modules.
type DQError struct {
	// Module is the component that raised the error (e.g. "configmodel", "runner", "diagnose").
	Module string
	// Message is the human readable description, also written to job_exception_message.
	Message string
	// OriginalErr is the wrapped cause, if any.
	OriginalErr error
	// Kind classifies the error.
	Kind Kind
	// StackTrace is captured at construction time for debugging.
	StackTrace string
}

// NewDQError creates a new DQError.
func NewDQError(module string, kind Kind, message string, originalErr error) *DQError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &DQError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		Kind:        kind,
		StackTrace:  string(buf[:n]),
	}
}

// NewDQErrorf creates a new DQError using a format string.
// If the last argument is an error, it becomes OriginalErr and is not used for formatting.
//
// Example:
//
//	NewDQErrorf("database", KindTransient, "failed to connect to %s", "mgdb", err)
func NewDQErrorf(module string, kind Kind, format string, a ...interface{}) *DQError {
	var originalErr error
	args := a
	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			args = args[:len(args)-1]
		}
	}
	return NewDQError(module, kind, fmt.Sprintf(format, args...), originalErr)
}

// NewConfigurationError creates a KindConfiguration error.
func NewConfigurationError(module, message string, originalErr error) *DQError {
	return NewDQError(module, KindConfiguration, message, originalErr)
}

// NewConcurrencyTimeoutError creates a KindConcurrencyTimeout error.
func NewConcurrencyTimeoutError(module, message string) *DQError {
	return NewDQError(module, KindConcurrencyTimeout, message, nil)
}

// NewTransientError creates a KindTransient error.
func NewTransientError(module, message string, originalErr error) *DQError {
	return NewDQError(module, KindTransient, message, originalErr)
}

// Error implements the error interface.
func (e *DQError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *DQError) Unwrap() error {
	return e.OriginalErr
}

// Is matches a kind-only prototype (a DQError with an empty Message) against this error's Kind.
func (e *DQError) Is(target error) bool {
	t, ok := target.(*DQError)
	if !ok {
		return false
	}
	if t.Message == "" {
		return t.Kind == e.Kind
	}
	return t == e
}

// KindOf returns the Kind of the outermost DQError in the chain.
// Context cancellation maps to KindTermination and everything unknown to KindUnhandled.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *DQError
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindTermination
	}
	return KindUnhandled
}

// IsKind reports whether any DQError in the chain has the given kind.
func IsKind(err error, kind Kind) bool {
	return errors.Is(err, &DQError{Kind: kind})
}

// TypeName returns the exception type recorded in the job log.
func TypeName(err error) string {
	return string(KindOf(err))
}

// nonRetryableKinds are never retried even when their cause looks like a connectivity error.
var nonRetryableKinds = map[Kind]bool{
	KindConfiguration:          true,
	KindConcurrencyTimeout:     true,
	KindMaxRetriesExceeded:     true,
	KindUnsupportedCombination: true,
	KindTermination:            true,
}

var transientMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"bad connection",
	"server closed the connection",
	"too many connections",
	"no such host",
}

// IsTransient reports whether err is a connectivity failure worth retrying.
// Logical failures, cancellations and configuration errors are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var de *DQError
	if errors.As(err, &de) {
		if de.Kind == KindTransient {
			return true
		}
		if nonRetryableKinds[de.Kind] {
			return false
		}
	}

	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range transientMessages {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// IsErrorOfType checks if an error matches a name.
// It checks in order: registered prototypes (errors.Is), message substring, and reflected type name.
func IsErrorOfType(err error, errorTypeName string) bool {
	if err == nil {
		return false
	}

	registryMutex.RLock()
	targetError, ok := errorRegistry[errorTypeName]
	registryMutex.RUnlock()
	if ok && errors.Is(err, targetError) {
		return true
	}

	for currentErr := err; currentErr != nil; currentErr = errors.Unwrap(currentErr) {
		if strings.Contains(currentErr.Error(), errorTypeName) {
			return true
		}
		errType := reflect.TypeOf(currentErr)
		if errType.String() == errorTypeName || (errType.Kind() == reflect.Ptr && errType.Elem().String() == errorTypeName) {
			return true
		}
	}
	return false
}

// ExtractErrorMessage returns the Message of a DQError, or Error() for anything else.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var de *DQError
	if errors.As(err, &de) {
		if de.OriginalErr != nil && de.Kind != KindConcurrencyTimeout {
			return fmt.Sprintf("%s: %v", de.Message, de.OriginalErr)
		}
		return de.Message
	}
	return err.Error()
}

func init() {
	for _, kind := range []Kind{
		KindConfiguration, KindConcurrencyTimeout, KindTransient, KindMaxRetriesExceeded,
		KindUnsupportedCombination, KindDataFetch, KindTermination, KindUnhandled,
	} {
		RegisterErrorType(string(kind), &DQError{Kind: kind})
	}

	RegisterErrorType("driver.ErrBadConn", driver.ErrBadConn)
	RegisterErrorType("sql.ErrConnDone", sql.ErrConnDone)
	RegisterErrorType("mysql.ErrInvalidConn", mysql.ErrInvalidConn)
	RegisterErrorType("io.ErrUnexpectedEOF", io.ErrUnexpectedEOF)
	RegisterErrorType("syscall.ECONNREFUSED", syscall.ECONNREFUSED)
	RegisterErrorType("syscall.ECONNRESET", syscall.ECONNRESET)
	RegisterErrorType("context.DeadlineExceeded", context.DeadlineExceeded)
}
