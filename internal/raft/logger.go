package raft

import (
	"fmt"
	"log/slog"
	"os"
)

// Logger bridges etcd raft's logging interface onto slog.
type Logger struct {
	l *slog.Logger
}

func NewSlogRaftLogger() *Logger {
	return &Logger{
		l: slog.Default().WithGroup("raft"),
	}
}

func (l *Logger) Debug(v ...interface{}) {
	l.l.Debug(fmt.Sprint(v...))
}

func (l *Logger) Info(v ...interface{}) {
	l.l.Info(fmt.Sprint(v...))
}

func (l *Logger) Warning(v ...interface{}) {
	l.l.Warn(fmt.Sprint(v...))
}

func (l *Logger) Error(v ...interface{}) {
	l.l.Error(fmt.Sprint(v...))
}

// Fatal must terminate the process; etcd raft relies on it.
func (l *Logger) Fatal(v ...interface{}) {
	l.l.Error(fmt.Sprint(v...))
	os.Exit(1)
}

func (l *Logger) Panic(v ...interface{}) {
	msg := fmt.Sprint(v...)
	l.l.Error(msg)
	panic(msg)
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	l.l.Debug(fmt.Sprintf(format, v...))
}

func (l *Logger) Infof(format string, v ...interface{}) {
	l.l.Info(fmt.Sprintf(format, v...))
}

func (l *Logger) Warningf(format string, v ...interface{}) {
	l.l.Warn(fmt.Sprintf(format, v...))
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.l.Error(fmt.Sprintf(format, v...))
}

func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.l.Error(fmt.Sprintf(format, v...))
	os.Exit(1)
}

func (l *Logger) Panicf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	l.l.Error(msg)
	panic(msg)
}
