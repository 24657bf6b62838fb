/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package daemon

import (
	"io"
	"log"
	"os"
)

const (
	LogLevelSilent = iota
	LogLevelError
	LogLevelInfo
	LogLevelDebug
)

type Logger struct {
	Debug *log.Logger
	Info  *log.Logger
	Error *log.Logger
}

func NewLogger(level int, prepend string) *Logger {
	output := os.Stdout

	logErr, logInfo, logDebug := func() (io.Writer, io.Writer, io.Writer) {
		if level >= LogLevelDebug {
			return output, output, output
		}
		if level >= LogLevelInfo {
			return output, output, io.Discard
		}
		if level >= LogLevelError {
			return output, io.Discard, io.Discard
		}
		return io.Discard, io.Discard, io.Discard
	}()

	return &Logger{
		Debug: log.New(logDebug,
			"DEBUG: "+prepend,
			log.Ldate|log.Ltime,
		),
		Info: log.New(logInfo,
			"INFO: "+prepend,
			log.Ldate|log.Ltime,
		),
		Error: log.New(logErr,
			"ERROR: "+prepend,
			log.Ldate|log.Ltime,
		),
	}
}

// LogLevel maps a LOG_LEVEL environment value to a level, defaulting
// to info.
func LogLevel(name string) int {
	switch name {
	case "debug":
		return LogLevelDebug
	case "error":
		return LogLevelError
	case "silent":
		return LogLevelSilent
	}
	return LogLevelInfo
}
