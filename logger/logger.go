// Copyright 2023-present the CoreKV Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package logger provides the project-wide logging facilities. Each
// component obtains its own prefixed logger via GetLogger, all backed by
// a single shared logrus instance so that level and output settings
// apply everywhere at once.
package logger

import (
	"fmt"
	"io"
	"time"

	prefixed "github.com/chappjc/logrus-prefix"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
)

var globalLogger *logrus.Logger

// GetLogger returns a configured logger for the given prefix
func GetLogger(prefix string) *logrus.Entry {
	if prefix == "" {
		prefix = "<no prefix>"
	}
	if globalLogger == nil {
		logger := logrus.New()
		logger.Formatter = &prefixed.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		}
		globalLogger = logger
	}
	return globalLogger.WithField("prefix", prefix)
}

// SetLevel sets the log level on the shared logger. The level string is
// parsed by logrus, so anything from "panic" to "trace" is accepted.
func SetLevel(log *logrus.Entry, level string) error {
	lv, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level '%s': %w", level, err)
	}
	log.Logger.SetLevel(lv)
	return nil
}

// WithFile logs to the specified file in addition to the existing
// output streams
func WithFile(log *logrus.Entry, logfile string) {
	log.Logger.AddHook(lfshook.NewHook(lfshook.PathMap{
		logrus.PanicLevel: logfile,
		logrus.FatalLevel: logfile,
		logrus.ErrorLevel: logfile,
		logrus.WarnLevel:  logfile,
		logrus.InfoLevel:  logfile,
		logrus.DebugLevel: logfile,
		logrus.TraceLevel: logfile,
	}, &logrus.TextFormatter{}))
}

// WithNoStdOutErr disables logging to stdout/stderr, leaving only the
// hooks (if any) to receive log entries
func WithNoStdOutErr(log *logrus.Entry) {
	log.Logger.SetOutput(io.Discard)
}
