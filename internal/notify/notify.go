// Package notify delivers user-facing messages about cart operations.
// The store reports failures and reconciliation results through a Notifier;
// how they reach the shopper is up to the binding.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one message for the shopper.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Notifier delivers notifications. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Error is shorthand for an error-level notification.
func Error(ctx context.Context, n Notifier, msg string) {
	if n != nil {
		n.Notify(ctx, Notification{Level: LevelError, Message: msg})
	}
}

// Info is shorthand for an info-level notification.
func Info(ctx context.Context, n Notifier, msg string) {
	if n != nil {
		n.Notify(ctx, Notification{Level: LevelInfo, Message: msg})
	}
}

// Success is shorthand for a success-level notification.
func Success(ctx context.Context, n Notifier, msg string) {
	if n != nil {
		n.Notify(ctx, Notification{Level: LevelSuccess, Message: msg})
	}
}

// Warning is shorthand for a warning-level notification.
func Warning(ctx context.Context, n Notifier, msg string) {
	if n != nil {
		n.Notify(ctx, Notification{Level: LevelWarning, Message: msg})
	}
}

// Log writes notifications to a structured logger.
type Log struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (l Log) Notify(ctx context.Context, n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	switch n.Level {
	case LevelWarning:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	}
	logger.Log(ctx, level, n.Message, "notification", string(n.Level))
}

// Recorder keeps notifications in memory, newest last. Used by the HTTP
// binding to surface recent messages and by tests.
type Recorder struct {
	mu    sync.Mutex
	limit int
	items []Notification
	next  Notifier
}

// NewRecorder keeps at most limit notifications (0 = unbounded) and forwards
// each one to next when it is non-nil.
func NewRecorder(limit int, next Notifier) *Recorder {
	return &Recorder{limit: limit, next: next}
}

// Notify implements Notifier.
func (r *Recorder) Notify(ctx context.Context, n Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	if r.limit > 0 && len(r.items) > r.limit {
		r.items = append([]Notification(nil), r.items[len(r.items)-r.limit:]...)
	}
	r.mu.Unlock()

	if r.next != nil {
		r.next.Notify(ctx, n)
	}
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Drain returns the recorded notifications and forgets them.
func (r *Recorder) Drain() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.items
	r.items = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}
