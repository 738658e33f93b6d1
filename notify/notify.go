// Package notify reports the progress of lending operations to the user.
package notify

import (
	"github.com/sirupsen/logrus"
)

type Severity int

const (
	Info Severity = iota
	Success
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

type Notification struct {
	Severity    Severity
	Message     string
	Description string
}

// Notifier must not block the caller beyond handing the notification off.
type Notifier interface {
	Notify(n *Notification)
}

type LogNotifier struct {
	log *logrus.Entry
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{
		log: logrus.StandardLogger().WithField("service", "notify"),
	}
}

func (l *LogNotifier) Notify(n *Notification) {
	entry := l.log.WithField("severity", n.Severity.String())
	if n.Description != "" {
		entry = entry.WithField("description", n.Description)
	}
	switch n.Severity {
	case Error:
		entry.Error(n.Message)
	default:
		entry.Info(n.Message)
	}
}

// Fanout delivers every notification to each of its notifiers in order.
type Fanout []Notifier

func (f Fanout) Notify(n *Notification) {
	for _, notifier := range f {
		notifier.Notify(n)
	}
}
