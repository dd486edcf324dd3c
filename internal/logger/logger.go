// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// Logger wraps the standard log package with leveled output to stdout and
// an optional log file
type Logger struct {
	file   *os.File
	logger *log.Logger
	debug  bool
	mu     sync.RWMutex
	closed bool
}

var (
	defaultLogger *Logger
	defaultMu     sync.Mutex
	once          sync.Once
)

// Init initializes the default logger
// If already initialized, returns the existing logger
func Init(logFile string) (*Logger, error) {
	var err error
	once.Do(func() {
		var l *Logger
		l, err = NewLogger(logFile)
		if err == nil {
			defaultMu.Lock()
			defaultLogger = l
			defaultMu.Unlock()
		}
	})
	return GetDefault(), err
}

// NewLogger creates a logger writing to stdout and, when logFile is set, to
// that file as well
func NewLogger(logFile string) (*Logger, error) {
	if logFile == "" {
		return New(os.Stdout), nil
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := New(io.MultiWriter(os.Stdout, file))
	l.file = file
	return l, nil
}

// New creates a logger writing to w
func New(w io.Writer) *Logger {
	return &Logger{
		logger: log.New(w, "", log.LstdFlags|log.Lshortfile),
		debug:  os.Getenv("SEGMENTER_DEBUG") != "",
	}
}

// GetDefault returns the default logger instance
// If the logger was never initialized or has been closed, a stdout logger
// takes its place
func GetDefault() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultLogger == nil || defaultLogger.isClosed() {
		defaultLogger = New(os.Stdout)
	}
	return defaultLogger
}

// SetDebug toggles DEBUG output
func (l *Logger) SetDebug(on bool) {
	l.mu.Lock()
	l.debug = on
	l.mu.Unlock()
}

func (l *Logger) isClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closed
}

func (l *Logger) logMessage(level, format string, v ...interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return
	}
	if level == "DEBUG" && !l.debug {
		return
	}

	message := fmt.Sprintf(format, v...)
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	l.logger.Output(3, fmt.Sprintf("[%s] [%s] %s", timestamp, level, message))
}

// Printf logs a message at INFO level
func (l *Logger) Printf(format string, v ...interface{}) {
	l.logMessage("INFO", format, v...)
}

// Println logs a message at INFO level
func (l *Logger) Println(v ...interface{}) {
	l.logMessage("INFO", "%s", fmt.Sprint(v...))
}

// Errorf logs a message at ERROR level
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.logMessage("ERROR", format, v...)
}

// Warnf logs a message at WARN level
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.logMessage("WARN", format, v...)
}

// Debugf logs a message at DEBUG level
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.logMessage("DEBUG", format, v...)
}

// Fatalf logs a message at FATAL level and exits
func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.logMessage("FATAL", format, v...)
	os.Exit(1)
}

// Close closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Package-level convenience functions
func Printf(format string, v ...interface{}) {
	GetDefault().Printf(format, v...)
}

func Errorf(format string, v ...interface{}) {
	GetDefault().Errorf(format, v...)
}

func Warnf(format string, v ...interface{}) {
	GetDefault().Warnf(format, v...)
}

func Debugf(format string, v ...interface{}) {
	GetDefault().Debugf(format, v...)
}

func Fatalf(format string, v ...interface{}) {
	GetDefault().Fatalf(format, v...)
}
