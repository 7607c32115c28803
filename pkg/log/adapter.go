// Package log holds logrus setup and adapters to third-party logger
// interfaces.
package log

import "github.com/sirupsen/logrus"

// BadgerLogrusAdapter bridges badger's Logger interface onto a logrus
// entry so the embedded database logs through the application logger.
type BadgerLogrusAdapter struct {
	*logrus.Entry
}

// NewBadgerLogrusAdapter wraps entry as a badger.Logger.
func NewBadgerLogrusAdapter(entry *logrus.Entry) *BadgerLogrusAdapter {
	return &BadgerLogrusAdapter{entry}
}

func (l *BadgerLogrusAdapter) Errorf(f string, v ...interface{})   { l.Entry.Errorf(f, v...) }
func (l *BadgerLogrusAdapter) Warningf(f string, v ...interface{}) { l.Entry.Warningf(f, v...) }
func (l *BadgerLogrusAdapter) Infof(f string, v ...interface{})    { l.Entry.Infof(f, v...) }
func (l *BadgerLogrusAdapter) Debugf(f string, v ...interface{})   { l.Entry.Debugf(f, v...) }
