// Package logging builds the process logger. Loggers are passed by reference; there is no
// package-level logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns a logrus logger writing to stdout. level falls back to info when empty or
// unknown; format "json" selects the JSON formatter, anything else the text formatter.
func New(level, format string) *logrus.Logger {
	l := logrus.New()
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	l.SetOutput(os.Stdout)
	return l
}

// FromEnv reads LOG_LEVEL and LOG_FORMAT, overriding the given defaults when set.
func FromEnv(defLevel, defFormat string) *logrus.Logger {
	level := defLevel
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		level = v
	}
	format := defFormat
	if v, ok := os.LookupEnv("LOG_FORMAT"); ok {
		format = v
	}
	return New(level, format)
}

// Discard is a logger that drops everything; used when a component gets no logger.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return Discard()
	}
	return l
}
