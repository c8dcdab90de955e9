package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger

	debugOnce    sync.Once
	debugEnabled bool
)

// Fields carries the structured payload of a log line.
type Fields map[string]any

// Logger returns the shared structured logger used across the service.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// Info emits a structured JSON log line at info level.
func Info(msg string, fields Fields) { emit("info", msg, fields) }

// Warn emits a structured JSON log line at warn level.
func Warn(msg string, fields Fields) { emit("warn", msg, fields) }

// Error emits a structured JSON log line at error level.
func Error(msg string, fields Fields) { emit("error", msg, fields) }

// Debug emits a log line only when IDGATE_DEBUG is set.
func Debug(msg string, fields Fields) {
	debugOnce.Do(func() {
		debugEnabled = os.Getenv("IDGATE_DEBUG") != ""
	})
	if debugEnabled {
		emit("debug", msg, fields)
	}
}

func emit(level, msg string, fields Fields) {
	entry := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		entry[k] = v
	}
	entry["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level
	entry["msg"] = msg

	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}

// LogRequest emits a structured JSON log line with common HTTP fields.
func LogRequest(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}
