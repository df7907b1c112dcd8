// Package notify holds user-facing notifications raised by the engine.
package notify

import (
	"sync"
	"time"
)

// Level represents the severity of a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification represents a single notification event.
type Notification struct {
	Level     Level
	Message   string
	CreatedAt time.Time
}

// Collector keeps notifications in arrival order until drained.
type Collector struct {
	mu    sync.Mutex
	items []Notification
}

// Add records a notification.
func (c *Collector) Add(level Level, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, Notification{Level: level, Message: msg, CreatedAt: time.Now()})
}

// Drain returns every recorded notification and forgets them.
func (c *Collector) Drain() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.items
	c.items = nil
	return out
}
