package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/calvinalkan/lurch/internal/config"
	"github.com/jedisct1/dlog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var severities = map[string]dlog.Severity{
	"debug":   dlog.SeverityDebug,
	"info":    dlog.SeverityInfo,
	"notice":  dlog.SeverityNotice,
	"warning": dlog.SeverityWarning,
	"error":   dlog.SeverityError,
}

// applyLogLevel sets the process-wide dlog level from cfg.LogLevel.
// Unknown names are rejected by config.Validate before this runs.
func applyLogLevel(cfg *config.Config) {
	if sev, ok := severities[cfg.LogLevel]; ok {
		dlog.SetLogLevel(sev)
	}
}

// tableLogf forwards table lifecycle messages at debug level.
func tableLogf(format string, args ...any) {
	dlog.Debugf(format, args...)
}

// eventLog is a table observer that appends one line per change to a
// writer, normally a size-rotated lumberjack file.
//
// Observers run under bucket locks of different buckets at the same time,
// so writes are serialized here.
type eventLog struct {
	mu  sync.Mutex
	w   io.WriteCloser
	now func() time.Time
}

// openEventLog returns nil when cfg.EventLog is empty.
func openEventLog(cfg *config.Config) *eventLog {
	if cfg.EventLog == "" {
		return nil
	}

	return newEventLog(&lumberjack.Logger{
		Filename:   cfg.EventLog,
		MaxSize:    cfg.EventLogMaxSizeMB,
		MaxBackups: cfg.EventLogMaxBackups,
		MaxAge:     cfg.EventLogMaxAgeDays,
		LocalTime:  true,
	})
}

func newEventLog(w io.WriteCloser) *eventLog {
	return &eventLog{w: w, now: time.Now}
}

func (e *eventLog) ItemAdded(key, value string) {
	e.write("added", key, fmt.Sprintf("%q", value))
}

func (e *eventLog) ItemUpdated(key, previous, value string) {
	e.write("updated", key, fmt.Sprintf("%q -> %q", previous, value))
}

func (e *eventLog) ItemRemoved(key, value string) {
	e.write("removed", key, fmt.Sprintf("%q", value))
}

func (e *eventLog) write(event, key, detail string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, err := fmt.Fprintf(e.w, "%s %-7s %q %s\n", e.now().Format(time.RFC3339Nano), event, key, detail)
	if err != nil {
		dlog.Warnf("event log: %v", err)
	}
}

func (e *eventLog) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.w.Close()
}
