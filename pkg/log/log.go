package log

import (
	"fmt"
	"gopkg.in/natefinch/lumberjack.v2"
	"io"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"
	"time"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	logger *logrus.Logger
	once   sync.Once
)

type Fields = logrus.Fields

func NewLogger() *logrus.Logger {
	once.Do(func() {
		logger = logrus.New()
		level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
		if err != nil {
			level = logrus.DebugLevel
		}
		logger.SetLevel(level)

		logger.SetFormatter(&formatter.Formatter{
			NoColors:        false,
			TimestampFormat: "02 Jan 06 - 15:04",
			HideKeys:        false,
			CallerFirst:     true,
			CustomCallerFormatter: func(f *runtime.Frame) string {
				s := strings.Split(f.Function, ".")
				funcName := s[len(s)-1]
				return fmt.Sprintf(" \x1b[%dm[%s:%d][%s()]", 34, path.Base(f.File), f.Line, funcName)
			},
		})

		writers := []io.Writer{os.Stderr}

		appEnv := os.Getenv("APP_ENV")
		if appEnv != "test" {
			fileWriter := &lumberjack.Logger{
				Filename:   fmt.Sprintf("./storage/logs/voice-booking-%s.log", time.Now().Format("2006-01-02")),
				LocalTime:  true,
				Compress:   true,
				MaxSize:    100,
				MaxAge:     7,
				MaxBackups: 3,
			}
			writers = append(writers, fileWriter)
		}

		logger.SetOutput(io.MultiWriter(writers...))
		logger.SetReportCaller(true)
	})

	return logger
}

// entry falls back to the standard logger until NewLogger has run, e.g. in tests.
func entry(fields Fields) *logrus.Entry {
	if fields == nil {
		fields = Fields{}
	}
	if logger == nil {
		return logrus.WithFields(fields)
	}
	return logger.WithFields(fields)
}

func Info(fields Fields, msg string) {
	entry(fields).Info(msg)
}

func Warn(fields Fields, msg string) {
	entry(fields).Warn(msg)
}

func Error(fields Fields, msg string) {
	entry(fields).Error(msg)
}

// TraceID reuses the request id when there is one so a caller-facing trace id matches the access log.
func TraceID(requestID string) string {
	if requestID != "" && requestID != "unknown" {
		return requestID
	}

	id, err := uuid.NewRandom()
	if err != nil {
		Error(Fields{"error": err.Error()}, "[log.TraceID] failed to generate trace ID")
		return "unknown"
	}
	return id.String()
}
