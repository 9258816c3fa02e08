// Package input forwards low-level mouse and keyboard hooks to typed events
// and derives a debounced user-activity signal from them.
package input

import (
	"errors"
	"time"
)

// EventType identifies what a hook observed.
type EventType int

const (
	MouseMove EventType = iota
	MouseDown
	MouseUp
	MouseWheel
	KeyDown
)

func (t EventType) String() string {
	switch t {
	case MouseMove:
		return "mouse-move"
	case MouseDown:
		return "mouse-down"
	case MouseUp:
		return "mouse-up"
	case MouseWheel:
		return "mouse-wheel"
	case KeyDown:
		return "key-down"
	default:
		return "unknown"
	}
}

// IsMouse reports whether the event came from a pointer device.
func (t EventType) IsMouse() bool { return t != KeyDown }

// Event is one hook callback.
type Event struct {
	Type EventType
	X, Y int
	Key  string // key name for KeyDown
	Time time.Time
}

// ErrHookInstalled is returned when a hook is installed twice.
var ErrHookInstalled = errors.New("hook already installed")

// Hook is a global input hook: Install starts delivering events to callback
// on an arbitrary goroutine, Uninstall stops it.
type Hook interface {
	Install(callback func(Event)) error
	Uninstall() error
}

// Dispatcher runs functions on the UI-owned goroutine, in post order.
type Dispatcher interface {
	Post(fn func())
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(fn func())

func (f DispatcherFunc) Post(fn func()) { f(fn) }

// Immediate runs posted functions on the caller's goroutine.
var Immediate Dispatcher = DispatcherFunc(func(fn func()) { fn() })
