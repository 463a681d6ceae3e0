package blazesched

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

type Logger struct {
	*logrus.Logger
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.Logger.Infof(format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.Logger.Debugf(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.Logger.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.Logger.Errorf(format, args...)
}

func (l *Logger) Trace(format string, args ...interface{}) {
	l.Logger.Tracef(format, args...)
}

func (l *Logger) Fatal(format string, args ...interface{}) {
	l.Logger.Fatalf(format, args...)
}

func NewLog() *Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	logger.SetOutput(colorable.NewColorableStdout())
	logger.SetReportCaller(true)
	logger.SetFormatter(&logrus.TextFormatter{
		ForceColors:            isatty.IsTerminal(os.Stdout.Fd()),
		TimestampFormat:        "2006-01-02 15:04:05",
		DisableLevelTruncation: false,
		PadLevelText:           true,
		FullTimestamp:          true,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			_, file := filepath.Split(f.File)
			return "", fmt.Sprintf("%s:%d", file, f.Line)
		},
		EnvironmentOverrideColors: true,
	})

	return &Logger{Logger: logger}
}
