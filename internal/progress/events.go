// Package progress defines the structured event stream emitted during
// archive ingestion and the broker that fans events out to subscribers.
package progress

import (
	"fmt"
	"strings"
	"time"
)

// EventType is the severity of a progress event.
type EventType string

const (
	EventInfo    EventType = "info"
	EventSuccess EventType = "success"
	EventWarning EventType = "warning"
	EventError   EventType = "error"
)

// Distinguished message prefixes recognized by stream consumers.
const (
	ProgressPrefix        = "[PROGRESS]"
	MonitorProgressPrefix = "[MONITOR_PROGRESS]"
)

// Event is one entry in a job's ordered progress stream.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Message   string    `json:"message"`
}

func newEvent(t EventType, format string, args ...any) Event {
	return Event{
		Timestamp: time.Now(),
		Type:      t,
		Message:   fmt.Sprintf(format, args...),
	}
}

// Infof builds an informational event.
func Infof(format string, args ...any) Event { return newEvent(EventInfo, format, args...) }

// Successf builds a success event.
func Successf(format string, args ...any) Event { return newEvent(EventSuccess, format, args...) }

// Warningf builds a warning event.
func Warningf(format string, args ...any) Event { return newEvent(EventWarning, format, args...) }

// Errorf builds an error event.
func Errorf(format string, args ...any) Event { return newEvent(EventError, format, args...) }

// Progress builds the distinguished "[PROGRESS] done/total" event that
// drives progress-bar computation on the consumer side.
func Progress(done, total int) Event {
	return newEvent(EventInfo, "%s %d/%d", ProgressPrefix, done, total)
}

// MonitorProgress builds the distinguished post-ingest domain-monitor event.
func MonitorProgress(done, total int, label string) Event {
	return newEvent(EventInfo, "%s %d/%d %s", MonitorProgressPrefix, done, total, label)
}

// IsProgress reports whether the event carries a progress prefix.
func (e Event) IsProgress() bool {
	return strings.HasPrefix(e.Message, ProgressPrefix) ||
		strings.HasPrefix(e.Message, MonitorProgressPrefix)
}
