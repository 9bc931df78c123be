// Package notify delivers user-facing notifications (toasts).
package notify

import (
	"go.uber.org/zap"
)

// Kind is the severity of a notification.
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
)

// Notifier shows a message to the user.
type Notifier interface {
	Notify(title, message string, kind Kind)
}

// Message is a notification as delivered to subscribers.
type Message struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Kind    Kind   `json:"kind"`
}

// LogNotifier writes notifications to a zap logger.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier returns a notifier logging under the "notify" name.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

func (n *LogNotifier) Notify(title, message string, kind Kind) {
	fields := []zap.Field{zap.String("title", title), zap.String("kind", string(kind))}
	if kind == Error {
		n.logger.Warn(message, fields...)
		return
	}
	n.logger.Info(message, fields...)
}

// Fanout forwards every notification to each of its notifiers in order.
type Fanout []Notifier

func (f Fanout) Notify(title, message string, kind Kind) {
	for _, n := range f {
		if n != nil {
			n.Notify(title, message, kind)
		}
	}
}

// Discard drops every notification.
var Discard Notifier = Fanout(nil)
