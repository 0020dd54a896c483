// Package observability provides the runner's structured logging and
// iteration tracing: a Logger that emits sanitized structured entries to
// Cloud Logging when a project is configured and to a local *log.Logger
// otherwise, and a Tracer that records each task's stage/iteration
// lifecycle for later inspection.
package observability

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	gclogging "cloud.google.com/go/logging"

	"github.com/andywolf/taskrunner/internal/config"
	"github.com/andywolf/taskrunner/internal/security"
)

// Severity mirrors Cloud Logging's severity enum so callers never import
// cloud.google.com/go/logging directly.
type Severity string

const (
	SeverityDebug    Severity = "DEBUG"
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

func (s Severity) toCloud() gclogging.Severity {
	switch s {
	case SeverityDebug:
		return gclogging.Debug
	case SeverityWarning:
		return gclogging.Warning
	case SeverityError:
		return gclogging.Error
	case SeverityCritical:
		return gclogging.Critical
	default:
		return gclogging.Info
	}
}

// Logger is the runner's structured-logging surface. Every message and
// label value passes through a security.LogSanitizer before it leaves the
// process, since task descriptions, agent output, and check stdout can
// all legitimately contain credentials the agent was working with.
type Logger struct {
	taskID    string
	local     *log.Logger
	cloud     *gclogging.Logger
	client    *gclogging.Client
	sanitizer *security.LogSanitizer
	mu        sync.Mutex
	closed    bool
}

// New builds a Logger for taskID. When cfg.Cloud.Project is set it opens a
// Cloud Logging client under cfg.Cloud.LogName; otherwise (or if the
// client fails to initialize — a missing project should never block a
// local run) it falls back to a structured-JSON *log.Logger on stderr.
func New(ctx context.Context, cfg config.CloudConfig, taskID string) *Logger {
	l := &Logger{
		taskID:    taskID,
		local:     log.New(os.Stderr, "", 0),
		sanitizer: security.NewLogSanitizer(),
	}

	if cfg.Project == "" {
		return l
	}

	client, err := gclogging.NewClient(ctx, fmt.Sprintf("projects/%s", cfg.Project))
	if err != nil {
		l.local.Printf(`{"severity":"WARNING","message":"cloud logging client unavailable, falling back to local: %s"}`, err)
		return l
	}

	logName := cfg.LogName
	if logName == "" {
		logName = "taskrunner"
	}
	l.client = client
	l.cloud = client.Logger(logName)
	return l
}

// Close flushes and releases the underlying Cloud Logging client, a no-op
// when the Logger never opened one.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.client == nil {
		return nil
	}
	l.closed = true
	return l.client.Close()
}

// Log writes one structured entry at severity, with labels merged on top
// of the task id. Message and every label value are sanitized.
func (l *Logger) Log(severity Severity, message string, labels map[string]string) {
	message = l.sanitizer.Sanitize(message)
	merged := l.sanitizer.SanitizeMap(labels)
	merged["task_id"] = l.taskID

	if l.cloud != nil {
		l.cloud.Log(gclogging.Entry{
			Timestamp: time.Now().UTC(),
			Severity:  severity.toCloud(),
			Payload:   message,
			Labels:    merged,
		})
		return
	}

	l.local.Printf(`{"severity":%q,"task_id":%q,"message":%q,"labels":%v}`, severity, l.taskID, message, merged)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.Log(SeverityDebug, fmt.Sprintf(format, args...), map[string]string{})
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.Log(SeverityInfo, fmt.Sprintf(format, args...), map[string]string{})
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.Log(SeverityWarning, fmt.Sprintf(format, args...), map[string]string{})
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Log(SeverityError, fmt.Sprintf(format, args...), map[string]string{})
}
