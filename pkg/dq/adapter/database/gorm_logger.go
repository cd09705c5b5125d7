package database

import (
	"fmt"
	"strings"
	"time"

	gorm_logger "gorm.io/gorm/logger"

	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

// NewGormLogger creates a gorm logger writing through the runner's logger.
// SQL traces are emitted only when the runner logs at DEBUG; otherwise gorm reports warnings and errors.
func NewGormLogger() gorm_logger.Interface {
	gormLevel := gorm_logger.Warn
	switch logger.GetLogLevel() {
	case logger.LevelDebug:
		gormLevel = gorm_logger.Info
	case logger.LevelError:
		gormLevel = gorm_logger.Error
	case logger.LevelFatal:
		gormLevel = gorm_logger.Silent
	}

	return gorm_logger.New(
		NewGormWriter(),
		gorm_logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// GormWriter redirects gorm output to the runner's logger.
type GormWriter struct{}

// NewGormWriter creates a new instance of GormWriter.
func NewGormWriter() *GormWriter {
	return &GormWriter{}
}

// Printf implements the gorm logger Writer interface.
// Statement traces go to DEBUG, everything else to INFO.
func (w *GormWriter) Printf(format string, v ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	if isStatementTrace(msg) {
		logger.Debugf("[GORM] %s", msg)
		return
	}
	logger.Infof("[GORM] %s", msg)
}

func isStatementTrace(msg string) bool {
	if !strings.Contains(msg, "[") || !strings.Contains(msg, "]") {
		return false
	}
	upper := strings.ToUpper(msg)
	for _, verb := range []string{"SELECT", "INSERT", "UPDATE", "DELETE", "WITH"} {
		if strings.Contains(upper, verb) {
			return true
		}
	}
	return false
}
