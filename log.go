// Logs

package main

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// logLevel tags a log line's severity/category so every call site builds
// its line through the same leveled writer instead of hand-prefixing
// strings, and so a subsystem (e.g. the admin endpoint) can be told apart
// from per-session request/debug output at a glance.
type logLevel int

const (
	levelInfo logLevel = iota
	levelWarning
	levelError
	levelDebug
	levelRequest
)

func (l logLevel) tag() string {
	switch l {
	case levelWarning:
		return "WARNING"
	case levelError:
		return "ERROR"
	case levelDebug:
		return "DEBUG"
	case levelRequest:
		return "REQUEST"
	default:
		return "INFO"
	}
}

var logMutex sync.Mutex

// debugEnabled gates LOG_DEBUG-level output, shared by both per-session
// debug logging and the admin websocket endpoint's request tracing.
var debugEnabled = os.Getenv("LOG_DEBUG") == "YES"

// requestsEnabled gates per-connection request logging; on by default.
var requestsEnabled = os.Getenv("LOG_REQUESTS") != "NO"

// logWrite is the single place a line reaches stdout: timestamped and
// serialized against concurrent writers (sessions, the accept loop, and
// the optional admin endpoint all log from their own goroutines).
func logWrite(level logLevel, line string) {
	logMutex.Lock()
	defer logMutex.Unlock()
	fmt.Printf("[%s] [%s] %s\n", time.Now().Format("2006-01-02 15:04:05"), level.tag(), line)
}

// LogInfo logs an always-on informational line.
func LogInfo(line string) {
	logWrite(levelInfo, line)
}

// LogWarning logs an always-on warning line (a validation-warning or a
// recovered panic, per the error taxonomy's "log and continue" policy).
func LogWarning(line string) {
	logWrite(levelWarning, line)
}

// LogError logs an always-on error line.
func LogError(err error) {
	logWrite(levelError, err.Error())
}

// LogDebug logs a line only when LOG_DEBUG=YES.
func LogDebug(line string) {
	if debugEnabled {
		logWrite(levelDebug, line)
	}
}

// LogDebugEnabled reports whether debug logging is on, for callers (the
// admin endpoint's message trace) that want to skip building an expensive
// line rather than relying on LogDebug's own internal check.
func LogDebugEnabled() bool {
	return debugEnabled
}

// sessionTag formats the "#id (ip)" prefix shared by request and debug
// lines scoped to one connection.
func sessionTag(sessionID uint64, ip string) string {
	return "#" + strconv.FormatUint(sessionID, 10) + " (" + ip + ")"
}

// LogRequest logs a per-connection lifecycle line (connected/disconnected)
// unless LOG_REQUESTS=NO.
func LogRequest(sessionID uint64, ip string, line string) {
	if requestsEnabled {
		logWrite(levelRequest, sessionTag(sessionID, ip)+" "+line)
	}
}

// LogDebugSession logs a per-connection debug line, tagged the same way as
// LogRequest, gated the same way as LogDebug.
func LogDebugSession(sessionID uint64, ip string, line string) {
	LogDebug(sessionTag(sessionID, ip) + " " + line)
}
