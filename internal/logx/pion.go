package logx

import (
	"fmt"

	"github.com/pion/logging"
	"github.com/pterm/pterm"
)

// PionFactory adapts this package's pterm-backed logger to
// pion/logging.LoggerFactory so pion/dtls's internal diagnostics flow
// through the same leveled logger as the rest of wurtc.
type PionFactory struct{}

func (PionFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLogger{scope: scope}
}

type pionLogger struct {
	scope string
}

func (l *pionLogger) prefix(msg string) string {
	return fmt.Sprintf("[%s] %s", l.scope, msg)
}

func (l *pionLogger) Trace(msg string)                          { pterm.DefaultLogger.Debug(l.prefix(msg)) }
func (l *pionLogger) Tracef(format string, args ...interface{}) { l.Trace(fmt.Sprintf(format, args...)) }
func (l *pionLogger) Debug(msg string)                          { pterm.DefaultLogger.Debug(l.prefix(msg)) }
func (l *pionLogger) Debugf(format string, args ...interface{}) { l.Debug(fmt.Sprintf(format, args...)) }
func (l *pionLogger) Info(msg string)                           { pterm.DefaultLogger.Info(l.prefix(msg)) }
func (l *pionLogger) Infof(format string, args ...interface{})  { l.Info(fmt.Sprintf(format, args...)) }
func (l *pionLogger) Warn(msg string)                           { pterm.DefaultLogger.Warn(l.prefix(msg)) }
func (l *pionLogger) Warnf(format string, args ...interface{})  { l.Warn(fmt.Sprintf(format, args...)) }
func (l *pionLogger) Error(msg string)                          { pterm.DefaultLogger.Error(l.prefix(msg)) }
func (l *pionLogger) Errorf(format string, args ...interface{}) { l.Error(fmt.Sprintf(format, args...)) }

var _ logging.LoggerFactory = PionFactory{}
