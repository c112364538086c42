package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	INFO Level = iota
	WARN
	ERROR
	DEBUG
)

var (
	base   = zap.NewNop()
	baseMu sync.RWMutex

	colors = true
)

// Init sets up the console logger. NO_COLOR disables level colors.
func Init() {
	if os.Getenv("NO_COLOR") != "" {
		DisableColors()
	}
	SetBase(newConsoleLogger(os.Getenv("QUEUE_MONITOR_DEBUG") != ""))
}

func DisableColors() {
	baseMu.Lock()
	colors = false
	baseMu.Unlock()
}

// SetBase replaces the underlying zap logger (tests install an observer here).
func SetBase(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	baseMu.Lock()
	base = l
	baseMu.Unlock()
}

// Sync flushes buffered entries; call once on shutdown.
func Sync() {
	baseMu.RLock()
	l := base
	baseMu.RUnlock()
	_ = l.Sync()
}

func newConsoleLogger(debug bool) *zap.Logger {
	baseMu.RLock()
	useColors := colors
	baseMu.RUnlock()

	encCfg := zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		NameKey:          "component",
		MessageKey:       "msg",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout("15:04:05"),
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeName:       func(name string, enc zapcore.PrimitiveArrayEncoder) { enc.AppendString("[" + name + "]") },
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		ConsoleSeparator: " ",
	}
	if useColors {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if debug {
		level.SetLevel(zapcore.DebugLevel)
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), level)
	return zap.New(core)
}

func log(level Level, component string, format string, args ...interface{}) {
	baseMu.RLock()
	l := base
	baseMu.RUnlock()

	s := l.Named(component).Sugar()
	switch level {
	case INFO:
		s.Infof(format, args...)
	case WARN:
		s.Warnf(format, args...)
	case ERROR:
		s.Errorf(format, args...)
	case DEBUG:
		s.Debugf(format, args...)
	}
}

func Info(component string, format string, args ...interface{}) {
	log(INFO, component, format, args...)
}

func Warn(component string, format string, args ...interface{}) {
	log(WARN, component, format, args...)
}

func Error(component string, format string, args ...interface{}) {
	log(ERROR, component, format, args...)
}

func Debug(component string, format string, args ...interface{}) {
	log(DEBUG, component, format, args...)
}
