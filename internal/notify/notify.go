// Package notify delivers user-facing success and error messages.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Notifier shows transient messages to the user
type Notifier interface {
	Success(message string)
	Error(message string)
}

// Level distinguishes success toasts from error toasts
type Level int

const (
	LevelSuccess Level = iota
	LevelError
)

func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "success"
}

// Message is one notification
type Message struct {
	Level Level
	Text  string
	At    time.Time
}

// Log writes notifications to a logger
type Log struct {
	Logger *slog.Logger
}

func (n Log) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.Default()
	}
	return n.Logger
}

func (n Log) Success(message string) { n.logger().Info(message) }
func (n Log) Error(message string)   { n.logger().Error(message) }

// Chan forwards notifications on a buffered channel. When the buffer is full
// the oldest unread message is dropped.
type Chan struct {
	mu sync.Mutex
	ch chan Message
}

// NewChan creates a channel notifier with the given buffer size
func NewChan(size int) *Chan {
	if size <= 0 {
		size = 16
	}
	return &Chan{ch: make(chan Message, size)}
}

// C returns the receive side
func (n *Chan) C() <-chan Message {
	return n.ch
}

func (n *Chan) Success(message string) { n.push(LevelSuccess, message) }
func (n *Chan) Error(message string)   { n.push(LevelError, message) }

func (n *Chan) push(level Level, text string) {
	msg := Message{Level: level, Text: text, At: time.Now()}

	n.mu.Lock()
	defer n.mu.Unlock()
	for {
		select {
		case n.ch <- msg:
			return
		default:
		}
		select {
		case <-n.ch:
		default:
		}
	}
}

// Recorder keeps every notification in memory, for tests
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Success(message string) { r.add(LevelSuccess, message) }
func (r *Recorder) Error(message string)   { r.add(LevelError, message) }

func (r *Recorder) add(level Level, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Level: level, Text: text, At: time.Now()})
}

// Messages returns a copy of what was recorded
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Multi fans out to several notifiers
type Multi []Notifier

func (m Multi) Success(message string) {
	for _, n := range m {
		n.Success(message)
	}
}

func (m Multi) Error(message string) {
	for _, n := range m {
		n.Error(message)
	}
}
