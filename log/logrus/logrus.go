// Package logrus adapts a logrus entry to heapstash.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/heapstash"
)

var _ heapstash.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New tags every line with component=heapstash.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "heapstash")}
}

func (l Logger) entry(f heapstash.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	e := l.E
	if err, ok := f["err"].(error); ok {
		e = e.WithError(err)
	}
	rest := make(logrus.Fields, len(f))
	for k, v := range f {
		if k == "err" {
			if _, ok := v.(error); ok {
				continue
			}
		}
		rest[k] = v
	}
	return e.WithFields(rest)
}

func (l Logger) Debug(msg string, f heapstash.Fields) { l.entry(f).Debug(msg) }
func (l Logger) Info(msg string, f heapstash.Fields)  { l.entry(f).Info(msg) }
func (l Logger) Warn(msg string, f heapstash.Fields)  { l.entry(f).Warn(msg) }
func (l Logger) Error(msg string, f heapstash.Fields) { l.entry(f).Error(msg) }
