// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logger

import (
	"io"
	"os"
	"sync/atomic"
)

var defLogger atomic.Pointer[SlogLogger]

func init() {
	defLogger.Store(NewSlog(os.Stderr, FormatJSON, InfoLevel))
}

// Setup replaces the default logger
func Setup(w io.Writer, format Format, level Level) Logger {
	l := NewSlog(w, format, level)
	defLogger.Store(l)
	return l
}

// GetLogger returns the default logger
func GetLogger() Logger {
	return defLogger.Load()
}

func Debug(msg string, keysAndValues ...any) {
	defLogger.Load().Debug(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...any) {
	defLogger.Load().Info(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...any) {
	defLogger.Load().Warn(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...any) {
	defLogger.Load().Error(msg, keysAndValues...)
}

func SetLevel(level Level) {
	defLogger.Load().SetLevel(level)
}

func With(keysAndValues ...any) Logger {
	return defLogger.Load().With(keysAndValues...)
}
