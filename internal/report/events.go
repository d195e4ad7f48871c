package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventStrike    EventType = "strike"
	EventDelete    EventType = "delete"
	EventDrop      EventType = "drop"
	EventDuplicate EventType = "duplicate"
	EventRetain    EventType = "retain"
	EventConflict  EventType = "conflict"
	EventCopy      EventType = "copy"
	EventViolation EventType = "violation"
	EventError     EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// ParseLevel maps a level name to an EventLevel, defaulting to info.
func ParseLevel(name string) EventLevel {
	switch EventLevel(strings.ToLower(name)) {
	case LevelDebug:
		return LevelDebug
	case LevelWarning, "warn":
		return LevelWarning
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// Event is a single line of the audit log
type Event struct {
	Timestamp    time.Time         `json:"ts"`
	Level        EventLevel        `json:"level"`
	Event        EventType         `json:"event"`
	Archive      string            `json:"archive,omitempty"`
	Stage        string            `json:"stage,omitempty"`
	Filename     string            `json:"filename,omitempty"`
	Path         string            `json:"path,omitempty"`
	DestPath     string            `json:"dest_path,omitempty"`
	Others       []string          `json:"others,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	DryRun       bool              `json:"dry_run,omitempty"`
	BytesWritten int64             `json:"bytes_written,omitempty"`
	Duration     int64             `json:"duration_ms,omitempty"` // in milliseconds
	Error        string            `json:"error,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	// O_APPEND so two runs within the same second share one file
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogStrike logs a Files record selected for removal
func (l *EventLogger) LogStrike(archiveRoot, original, reason string) error {
	return l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventStrike,
		Archive:  archiveRoot,
		Filename: original,
		Reason:   reason,
	})
}

// LogDelete logs a file removal (or, with dryRun, a removal that would happen)
func (l *EventLogger) LogDelete(archiveRoot, stage, path string, dryRun bool, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:    level,
		Event:    EventDelete,
		Archive:  archiveRoot,
		Stage:    stage,
		Filename: filepath.Base(path),
		Path:     path,
		DryRun:   dryRun,
		Error:    errMsg,
	})
}

// LogDrop logs a metadata line removed from path
func (l *EventLogger) LogDrop(path, line string, dryRun bool) error {
	return l.Log(&Event{
		Level:  LevelDebug,
		Event:  EventDrop,
		Path:   path,
		DryRun: dryRun,
		Extra: map[string]string{
			"line": line,
		},
	})
}

// LogDuplicate logs a URL group resolved to a single retained original
func (l *EventLogger) LogDuplicate(url, retained, reason string, discarded []string) error {
	return l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventDuplicate,
		Filename: retained,
		Others:   discarded,
		Reason:   reason,
		Extra: map[string]string{
			"url": url,
		},
	})
}

// LogRetain logs an original kept in the merged archive
func (l *EventLogger) LogRetain(archiveRoot, original, reason string) error {
	return l.Log(&Event{
		Level:    LevelDebug,
		Event:    EventRetain,
		Archive:  archiveRoot,
		Filename: original,
		Reason:   reason,
	})
}

// LogConflict logs a filename claimed by two sources
func (l *EventLogger) LogConflict(stage, filename, first, second string) error {
	return l.Log(&Event{
		Level:    LevelError,
		Event:    EventConflict,
		Stage:    stage,
		Filename: filename,
		Others:   []string{first, second},
		Reason:   "filename collision",
	})
}

// LogCopy logs a single artifact copy
func (l *EventLogger) LogCopy(srcPath, destPath string, bytesWritten int64, duration time.Duration, err error) error {
	level := LevelDebug
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:        level,
		Event:        EventCopy,
		Filename:     filepath.Base(srcPath),
		Path:         srcPath,
		DestPath:     destPath,
		BytesWritten: bytesWritten,
		Duration:     duration.Milliseconds(),
		Error:        errMsg,
	})
}

// LogViolation logs a consistency violation
func (l *EventLogger) LogViolation(archiveRoot, check, item, presentIn, missingIn string) error {
	return l.Log(&Event{
		Level:    LevelWarning,
		Event:    EventViolation,
		Archive:  archiveRoot,
		Filename: item,
		Reason:   check,
		Extra: map[string]string{
			"present_in": presentIn,
			"missing_in": missingIn,
		},
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, path string, err error) error {
	return l.Log(&Event{
		Level: LevelError,
		Event: event,
		Path:  path,
		Error: err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
