package utils

import (
	"log"
	"os"
)

type Logger struct {
	info *log.Logger
	warn *log.Logger
	err  *log.Logger
}

func NewLogger() *Logger {
	flags := log.LstdFlags | log.LUTC
	return &Logger{
		info: log.New(os.Stdout, "INFO ", flags),
		warn: log.New(os.Stdout, "WARN ", flags),
		err:  log.New(os.Stderr, "ERROR ", flags),
	}
}

func (l *Logger) Infof(format string, args ...any) {
	if l == nil {
		return
	}
	l.info.Printf(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	if l == nil {
		return
	}
	l.warn.Printf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	if l == nil {
		return
	}
	l.err.Printf(format, args...)
}

// Printf logs at info level; kept for call sites that predate levels.
func (l *Logger) Printf(format string, args ...any) {
	l.Infof(format, args...)
}
