// Package notify delivers user-visible notifications.
package notify

import (
	"log/slog"
	"sync"

	"github.com/pterm/pterm"
)

// Level is the severity of a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier shows short messages to the person using the console.
type Notifier interface {
	Notify(level Level, title, message string)
}

// Func adapts a function to Notifier.
type Func func(level Level, title, message string)

func (f Func) Notify(level Level, title, message string) {
	f(level, title, message)
}

// Discard drops every notification.
var Discard Notifier = Func(func(Level, string, string) {})

// Terminal prints notifications with pterm prefixes.
type Terminal struct{}

func (Terminal) Notify(level Level, title, message string) {
	switch level {
	case LevelSuccess:
		pterm.Success.Printfln("%s: %s", title, message)
	case LevelWarning:
		pterm.Warning.Printfln("%s: %s", title, message)
	default:
		pterm.Error.Printfln("%s: %s", title, message)
	}
}

// Log writes notifications to the default slog logger.
type Log struct{}

func (Log) Notify(level Level, title, message string) {
	switch level {
	case LevelError:
		slog.Error(title, "message", message)
	case LevelWarning:
		slog.Warn(title, "message", message)
	default:
		slog.Info(title, "message", message)
	}
}

// Notification is one recorded message.
type Notification struct {
	Level   Level
	Title   string
	Message string
}

// Recorder keeps notifications in memory.
type Recorder struct {
	mu   sync.Mutex
	list []Notification
}

func (r *Recorder) Notify(level Level, title, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, Notification{Level: level, Title: title, Message: message})
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.list))
	copy(out, r.list)
	return out
}

// Count returns how many notifications of level were recorded.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.list {
		if item.Level == level {
			n++
		}
	}
	return n
}
