package exception

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDQErrorfExtractsOriginalError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewDQErrorf("database", KindTransient, "failed to connect to %s", "mgdb", cause)

	assert.Equal(t, "failed to connect to mgdb", err.Message)
	assert.Same(t, cause, err.OriginalErr)
	assert.Equal(t, "[database] failed to connect to mgdb: dial tcp: connection refused", err.Error())
	assert.NotEmpty(t, err.StackTrace)
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("loading job: %w", NewConfigurationError("configmodel", "bad config", nil))

	assert.Equal(t, KindConfiguration, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindConfiguration))
	assert.False(t, IsKind(wrapped, KindTransient))
	assert.Equal(t, KindTermination, KindOf(context.Canceled))
	assert.Equal(t, KindUnhandled, KindOf(errors.New("boom")))
	assert.Equal(t, "ConcurrencyTimeoutError", TypeName(NewConcurrencyTimeoutError("runner", "still running")))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad conn", fmt.Errorf("query: %w", driver.ErrBadConn), true},
		{"net op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"message match", errors.New("read tcp 10.0.0.1: connection reset by peer"), true},
		{"explicit transient", NewTransientError("httpsource", "gateway unavailable", nil), true},
		{"logical", errors.New("column not found"), false},
		{"configuration wrapping net error", NewConfigurationError("configmodel", "bad", &net.OpError{Op: "dial"}), false},
		{"cancelled", context.Canceled, false},
		{"max retries", NewDQError("retry", KindMaxRetriesExceeded, "gave up", driver.ErrBadConn), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsErrorOfType(t *testing.T) {
	err := fmt.Errorf("exec: %w", driver.ErrBadConn)
	assert.True(t, IsErrorOfType(err, "driver.ErrBadConn"))
	assert.True(t, IsErrorOfType(err, "bad connection"))
	assert.True(t, IsErrorOfType(NewTransientError("m", "x", nil), "exception.DQError"))
	assert.False(t, IsErrorOfType(errors.New("other"), "driver.ErrBadConn"))
	assert.True(t, IsErrorTypeRegistered(string(KindTransient)))
}

func TestExtractErrorMessage(t *testing.T) {
	assert.Equal(t, "", ExtractErrorMessage(nil))
	assert.Equal(t, "still running", ExtractErrorMessage(NewConcurrencyTimeoutError("runner", "still running")))
	assert.Equal(t, "bad config: field x", ExtractErrorMessage(NewConfigurationError("configmodel", "bad config", errors.New("field x"))))
	assert.Equal(t, "plain", ExtractErrorMessage(errors.New("plain")))
}
