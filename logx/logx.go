/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package logx is a small leveled, field-carrying logger over logrus. The
// archiver only ever logs to stderr (stdout must stay clean for `-f -`), so
// this keeps just that one sink and drops the teacher logger's syslog/gorm/
// hashicorp hook integrations entirely.
package logx

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Level mirrors the subset of logrus levels the archiver actually emits.
type Level = logrus.Level

const (
	DebugLevel = logrus.DebugLevel
	InfoLevel  = logrus.InfoLevel
	WarnLevel  = logrus.WarnLevel
	ErrorLevel = logrus.ErrorLevel
)

// Logger is the archiver's structured logger: level-filtered, stderr-only,
// with Fields-style field attachment per call.
type Logger struct {
	mu  sync.Mutex
	log *logrus.Logger
}

// Fields attaches key/value pairs to a single log entry.
type Fields = logrus.Fields

// New returns a Logger writing to w (stderr in production) at the given
// minimum level, formatted as plain text without timestamps (progress lines
// and warnings are meant to be read by a human at a terminal).
func New(w io.Writer, lvl Level) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableColors:    false,
	})
	return &Logger{log: l}
}

// NewStderr returns the default Logger used by the CLI.
func NewStderr(lvl Level) *Logger {
	return New(os.Stderr, lvl)
}

// Warn logs a warning-level message with optional fields. Per §7, warnings
// never abort the current operation; they are purely informational.
func (l *Logger) Warn(msg string, f Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.WithFields(f).Warn(msg)
}

// Error logs an error-level message, typically immediately before an
// operation aborts.
func (l *Logger) Error(msg string, f Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.WithFields(f).Error(msg)
}

// Info logs an informational message (e.g. examine-mode entry listings).
func (l *Logger) Info(msg string, f Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.WithFields(f).Info(msg)
}

// Debug logs a debug-level message, filtered out unless -v/-vv raised the level.
func (l *Logger) Debug(msg string, f Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.WithFields(f).Debug(msg)
}

// Writer exposes the raw stream the logger writes to, used by the progress
// reporter to interleave `[ current/ total]` lines on the same stderr sink
// without going through the field-carrying API.
func (l *Logger) Writer() io.Writer {
	return l.log.Out
}
