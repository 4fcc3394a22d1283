package logger

import (
	"context"
	"fmt"
	"time"
)

// Entry is one row of the shared log table.
type Entry struct {
	Timestamp time.Time
	Level     string
	Service   string
	StoreID   int64
	Source    string
	Message   string
	Metadata  map[string]interface{}
}

type LogCreator interface {
	CreateLog(ctx context.Context, entry Entry) error
}

// DatabaseLogger mirrors log events into the shared log table so operators can
// read a store's history without access to any process's stderr.
type DatabaseLogger struct {
	storage LogCreator
	ctx     context.Context
	service string
	next    Logger
}

// NewDatabaseLogger wraps next, persisting every event through s. Persistence
// failures are swallowed: losing a log row must never fail an ingestion step.
func NewDatabaseLogger(ctx context.Context, s LogCreator, service string, next Logger) *DatabaseLogger {
	return &DatabaseLogger{
		storage: s,
		ctx:     ctx,
		service: service,
		next:    next,
	}
}

func (l *DatabaseLogger) log(level string, msg string, keysAndValues ...interface{}) {
	entry := Entry{
		Timestamp: time.Now(),
		Level:     level,
		Service:   l.service,
		Message:   msg,
	}

	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 >= len(keysAndValues) {
			break
		}
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		val := keysAndValues[i+1]

		switch key {
		case "store_id":
			switch id := val.(type) {
			case int64:
				entry.StoreID = id
			case int:
				entry.StoreID = int64(id)
			default:
				fmt.Sscanf(fmt.Sprintf("%v", val), "%d", &entry.StoreID)
			}
		case "source":
			entry.Source = fmt.Sprintf("%v", val)
		default:
			if entry.Metadata == nil {
				entry.Metadata = make(map[string]interface{})
			}
			entry.Metadata[key] = val
		}
	}

	_ = l.storage.CreateLog(l.ctx, entry)
}

func (l *DatabaseLogger) Debug(msg string, keysAndValues ...interface{}) {
	if l.next != nil {
		l.next.Debug(msg, keysAndValues...)
	}
	l.log("DEBUG", msg, keysAndValues...)
}

func (l *DatabaseLogger) Info(msg string, keysAndValues ...interface{}) {
	if l.next != nil {
		l.next.Info(msg, keysAndValues...)
	}
	l.log("INFO", msg, keysAndValues...)
}

func (l *DatabaseLogger) Warn(msg string, keysAndValues ...interface{}) {
	if l.next != nil {
		l.next.Warn(msg, keysAndValues...)
	}
	l.log("WARN", msg, keysAndValues...)
}

func (l *DatabaseLogger) Error(msg string, keysAndValues ...interface{}) {
	if l.next != nil {
		l.next.Error(msg, keysAndValues...)
	}
	l.log("ERROR", msg, keysAndValues...)
}
