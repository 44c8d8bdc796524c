package models

import (
	"time"
)

// LogLevel is the severity of an execution log entry.
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogSuccess LogLevel = "success"
	LogError   LogLevel = "error"
)

// ExecutionLog is one append-only audit entry for an intent. Entries are
// ordered by insertion; timestamps may collide under load.
type ExecutionLog struct {
	IntentID  string                 `json:"intent_id"`
	Timestamp time.Time              `json:"timestamp"`
	Level     LogLevel               `json:"level"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
