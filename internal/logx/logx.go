// Package logx provides leveled logging shared by every package in wurtc.
package logx

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
)

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 15:04:05"
	pterm.DefaultLogger.MaxWidth = 1000
}

func Debug(format string, args ...interface{}) {
	pterm.DefaultLogger.Debug(fmt.Sprintf(format, args...))
}

func Info(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...))
}

func Warn(format string, args ...interface{}) {
	pterm.DefaultLogger.Warn(fmt.Sprintf(format, args...))
}

func Error(format string, args ...interface{}) {
	pterm.DefaultLogger.Error(fmt.Sprintf(format, args...))
}

// Success logs a milestone worth calling out distinctly from routine
// Info traffic — a completed DTLS handshake, a peer reaching the open
// data-channel state — without a dedicated pterm level for it, so it
// renders through Info the same way the teacher's own LogSuccess did.
func Success(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...))
}

// EnableDebug configures the logger to show debug messages.
func EnableDebug() {
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
}

// Peer returns a logger scoped to a single peer. Every wurtc call site
// that logs about a specific peer (host.go, sctp_dispatch.go,
// cmd/wurtcd) goes through this instead of interpolating the id into
// the format string itself, so the field is structured the same way
// across every one of those sites rather than hand-formatted per call.
func Peer(id uuid.UUID) PeerLogger {
	return PeerLogger{id: id}
}

// PeerLogger is a leveled logger with a peer id attached to every
// line it writes.
type PeerLogger struct {
	id uuid.UUID
}

func (p PeerLogger) field(format string, args []interface{}) string {
	return fmt.Sprintf("peer=%s %s", p.id, fmt.Sprintf(format, args...))
}

func (p PeerLogger) Debug(format string, args ...interface{}) {
	pterm.DefaultLogger.Debug(p.field(format, args))
}

func (p PeerLogger) Info(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(p.field(format, args))
}

func (p PeerLogger) Warn(format string, args ...interface{}) {
	pterm.DefaultLogger.Warn(p.field(format, args))
}

func (p PeerLogger) Error(format string, args ...interface{}) {
	pterm.DefaultLogger.Error(p.field(format, args))
}

func (p PeerLogger) Success(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(p.field(format, args))
}
