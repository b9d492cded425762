// Package log defines the logging facade used by the resolver core.
//
// A logger is composed of tagged, leveled calls carrying structured Fields,
// mirroring the facade/backend split used throughout this package's ambient
// stack: callers depend only on the Logger interface, never a concrete
// backend.
package log

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Logger is the logging interface the resolver core depends on.
type Logger interface {
	// Trace logs step-by-step progress, such as a tick starting or a
	// suppressed (unchanged) resolution.
	Trace(tag, msg string, fields ...Field)
	// Warning logs a recoverable failure, such as a transport error that
	// will be retried.
	Warning(tag, msg string, fields ...Field)
	// Error logs a failure that needs attention.
	Error(tag, msg string, fields ...Field)

	// With returns a child Logger with fields attached to every call.
	With(fields ...Field) Logger
}

// Field is a single structured log attribute.
type Field struct {
	Key   string
	Value interface{}
}

// String builds a string Field.
func String(key, value string) Field { return Field{Key: key, Value: value} }

// Int builds an int Field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Bool builds a bool Field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Err builds an error Field under the conventional "error" key.
func Err(err error) Field { return Field{Key: "error", Value: err} }

// Stringer builds a Field from any fmt.Stringer.
func Stringer(key string, value fmt.Stringer) Field { return Field{Key: key, Value: value} }

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Trace(tag, msg string, fields ...Field)   {}
func (nopLogger) Warning(tag, msg string, fields ...Field) {}
func (nopLogger) Error(tag, msg string, fields ...Field)   {}
func (l nopLogger) With(fields ...Field) Logger            { return l }

// LogrusLogger returns a Logger backed by logrus, using entry (or
// logrus.StandardLogger()'s base entry if nil) to emit structured,
// leveled records.
func LogrusLogger(entry *logrus.Entry) Logger {
	if entry == nil {
		entry = logrus.NewEntry(logrus.StandardLogger())
	}
	return &logrusLogger{entry: entry}
}

type logrusLogger struct {
	entry *logrus.Entry
}

func (l *logrusLogger) Trace(tag, msg string, fields ...Field) {
	l.withTag(tag, fields).Trace(msg)
}

func (l *logrusLogger) Warning(tag, msg string, fields ...Field) {
	l.withTag(tag, fields).Warning(msg)
}

func (l *logrusLogger) Error(tag, msg string, fields ...Field) {
	l.withTag(tag, fields).Error(msg)
}

func (l *logrusLogger) With(fields ...Field) Logger {
	return &logrusLogger{entry: l.entry.WithFields(toLogrusFields(fields))}
}

func (l *logrusLogger) withTag(tag string, fields []Field) *logrus.Entry {
	e := l.entry.WithField("tag", tag)
	for k, v := range toLogrusFields(fields) {
		e = e.WithField(k, v)
	}
	return e
}

func toLogrusFields(fields []Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}
