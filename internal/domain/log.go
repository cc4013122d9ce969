package domain

import (
	"log/slog"
	"time"
)

// LogData is a log line travelling on the bus.
type LogData struct {
	Msg    string
	Level  slog.Level
	Source string // Adapter or engine name
	Time   time.Time
}

// NewLogData stamps a log record with the current time.
func NewLogData(msg, source string, level slog.Level) *LogData {
	return &LogData{
		Msg:    msg,
		Level:  level,
		Source: source,
		Time:   time.Now(),
	}
}
