package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   LevelDebug,
		"TRACE":   LevelDebug,
		" info ":  LevelInfo,
		"Warning": LevelWarn,
		"ERROR":   LevelError,
		"silent":  LevelFatal,
	}
	for in, want := range cases {
		got, err := ParseLogLevel(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	defer SetLogLevel("INFO")

	SetLogLevel("WARN")
	Infof("hidden %d", 1)
	Warnf("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown 2")

	SetLogLevel("DEBUG")
	assert.True(t, IsDebugEnabled())
	Debugf("query trace")
	assert.Contains(t, buf.String(), "[DEBUG] query trace")
}

func TestShortFunctionName(t *testing.T) {
	assert.Equal(t, "runner.NewJobRunner", shortFunctionName("github.com/x/pkg/dq/job/runner.NewJobRunner"))
	assert.Equal(t, "main.startRun", shortFunctionName("main.startRun.func1"))
}
