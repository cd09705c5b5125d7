package main

import (
	"context"
	_ "embed"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tigerroll/surfin-dq/pkg/dq/job/runner"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

// embeddedConfig is the default application configuration. ${VAR} placeholders are expanded at load time.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// main runs the CLI and exits with the code the command reports.
func main() {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Attempting to stop the job...", sig)
		cancel(runner.NewTerminationSignal(sig))
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	root := NewRootCommand(envFilePath, embeddedConfig)
	if err := root.ExecuteContext(ctx); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Err != nil {
				logger.Errorf("%v", exitErr.Err)
			}
			os.Exit(exitErr.Code)
		}
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	os.Exit(0)
}
