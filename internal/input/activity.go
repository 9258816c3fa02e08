package input

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultInactivityTimeout is how long the pointer may rest before the user
// is considered inactive.
const DefaultInactivityTimeout = 5 * time.Second

// ActivityMonitor derives an active/inactive signal from the mouse and
// keyboard hooks. Pointer movement marks the user active and re-arms the
// inactivity timer; a key press marks the user inactive at once.
type ActivityMonitor struct {
	mouse    *Registry
	keyboard *Registry
	disp     Dispatcher
	timeout  time.Duration
	logger   *slog.Logger

	mouseID ListenerID
	keyID   ListenerID

	mu     sync.Mutex
	active bool
	gen    uint64 // invalidates timers armed before the last transition
	timer  *time.Timer
	closed bool

	// only touched on the dispatcher
	listeners []func(active bool)
}

// NewActivityMonitor starts listening on both registries. A zero timeout
// uses DefaultInactivityTimeout.
func NewActivityMonitor(mouse, keyboard *Registry, disp Dispatcher, timeout time.Duration, logger *slog.Logger) *ActivityMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultInactivityTimeout
	}
	m := &ActivityMonitor{
		mouse:    mouse,
		keyboard: keyboard,
		disp:     disp,
		timeout:  timeout,
		logger:   logger.With("component", "activity"),
	}
	m.mouseID = mouse.Start(m.onMouse)
	m.keyID = keyboard.Start(m.onKey)
	return m
}

// OnChange registers fn for activity transitions. fn runs on the dispatcher.
func (m *ActivityMonitor) OnChange(fn func(active bool)) {
	m.disp.Post(func() { m.listeners = append(m.listeners, fn) })
}

// Active reports the current state.
func (m *ActivityMonitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *ActivityMonitor) onMouse(ev Event) {
	if ev.Type != MouseMove {
		return
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.gen++
	gen := m.gen
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.timeout, func() { m.expire(gen) })
	changed := !m.active
	m.active = true
	m.mu.Unlock()

	if changed {
		m.notify(true)
	}
}

func (m *ActivityMonitor) onKey(ev Event) {
	if ev.Type != KeyDown {
		return
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.gen++
	m.stopTimer()
	changed := m.active
	m.active = false
	m.mu.Unlock()

	if changed {
		m.notify(false)
	}
}

func (m *ActivityMonitor) expire(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || !m.active || m.closed {
		m.mu.Unlock()
		return
	}
	m.active = false
	m.timer = nil
	m.mu.Unlock()

	m.notify(false)
}

// stopTimer must be called with mu held.
func (m *ActivityMonitor) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *ActivityMonitor) notify(active bool) {
	m.logger.Debug("activity changed", "active", active)
	m.disp.Post(func() {
		for _, fn := range m.listeners {
			fn(active)
		}
	})
}

// Close cancels the timer and uninstalls both hooks unconditionally, even
// when other listeners are still attached to them.
// TODO: stop only this monitor's listeners once callers no longer rely on
// Close tearing down hooks they share.
func (m *ActivityMonitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.gen++
	m.stopTimer()
	m.mu.Unlock()

	m.mouse.ForceUninstall()
	m.keyboard.ForceUninstall()
	return nil
}
