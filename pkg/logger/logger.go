package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger configuration, usually read from the environment.
type Config struct {
	Level       string    // debug, info, warn, error
	Format      string    // json, text
	Output      io.Writer // overrides stdout/file when set
	ServiceName string

	LogFile    string // rotated file written alongside stdout when set
	MaxSize    int    // MB before rotation
	MaxBackups int
	MaxAge     int // days
}

// LoadFromEnv reads LOG_LEVEL, LOG_FORMAT, LOG_FILE and the rotation knobs.
func LoadFromEnv() *Config {
	return &Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Format:      getEnv("LOG_FORMAT", "text"),
		ServiceName: getEnv("SERVICE_NAME", "bonebot"),
		LogFile:     os.Getenv("LOG_FILE"),
		MaxSize:     getEnvInt("LOG_MAX_SIZE", 50),
		MaxBackups:  getEnvInt("LOG_MAX_BACKUPS", 5),
		MaxAge:      getEnvInt("LOG_MAX_AGE", 14),
	}
}

var (
	closer   io.Closer
	closerMu sync.Mutex

	defaultEntry   = logrus.NewEntry(logrus.StandardLogger())
	defaultEntryMu sync.RWMutex
)

// New builds a logrus entry tagged with the service name.
func New(cfg *Config) *logrus.Entry {
	if cfg == nil {
		cfg = LoadFromEnv()
	}

	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetReportCaller(true)

	if strings.ToLower(cfg.Format) == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
			CallerPrettyfier: callerPrettyfier,
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			TimestampFormat:  "2006-01-02T15:04:05.000Z07:00",
			CallerPrettyfier: callerPrettyfier,
		})
	}

	switch {
	case cfg.Output != nil:
		log.SetOutput(cfg.Output)
	case cfg.LogFile != "":
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   true,
		}
		closerMu.Lock()
		closer = fileWriter
		closerMu.Unlock()
		log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
	default:
		log.SetOutput(os.Stdout)
	}

	return log.WithField("service", cfg.ServiceName)
}

// Sync closes the rotated log file, if any.
func Sync() error {
	closerMu.Lock()
	defer closerMu.Unlock()
	if closer != nil {
		return closer.Close()
	}
	return nil
}

func SetDefault(e *logrus.Entry) {
	if e == nil {
		return
	}
	defaultEntryMu.Lock()
	defaultEntry = e
	defaultEntryMu.Unlock()
}

func Default() *logrus.Entry {
	defaultEntryMu.RLock()
	defer defaultEntryMu.RUnlock()
	return defaultEntry
}

// Component returns the default logger tagged with a component name.
func Component(name string) *logrus.Entry {
	return Default().WithField("component", name)
}

type contextKey struct{}

// WithContext attaches e to ctx so request-scoped fields follow the call chain.
func WithContext(ctx context.Context, e *logrus.Entry) context.Context {
	return context.WithValue(ctx, contextKey{}, e)
}

// FromContext returns the entry stored by WithContext, or fallback, or the default.
func FromContext(ctx context.Context, fallback *logrus.Entry) *logrus.Entry {
	if ctx != nil {
		if e, ok := ctx.Value(contextKey{}).(*logrus.Entry); ok {
			return e
		}
	}
	if fallback != nil {
		return fallback
	}
	return Default()
}

func callerPrettyfier(frame *runtime.Frame) (function string, file string) {
	funcName := frame.Function
	if idx := strings.LastIndex(funcName, "/"); idx != -1 {
		funcName = funcName[idx+1:]
	}
	return funcName, filepath.Base(frame.File) + ":" + strconv.Itoa(frame.Line)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}
