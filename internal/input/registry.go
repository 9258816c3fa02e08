package input

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// ListenerID identifies a started listener.
type ListenerID uint64

// Listener receives hook events on the hook's goroutine.
type Listener func(Event)

type entry struct {
	id ListenerID
	fn Listener
}

// Registry reference-counts listeners of one hook. The first Start installs
// the hook and the last Stop uninstalls it. Both are marshalled onto the
// dispatcher, so listener and hook state only change on that goroutine.
type Registry struct {
	name   string
	hook   Hook
	disp   Dispatcher
	logger *slog.Logger

	nextID atomic.Uint64

	// mu guards state read by the hook callback and by accessors
	mu        sync.RWMutex
	listeners []entry
	refs      int
	installed bool
}

// NewRegistry creates a registry for hook. name is used in logs only.
func NewRegistry(name string, hook Hook, disp Dispatcher, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		name:   name,
		hook:   hook,
		disp:   disp,
		logger: logger.With("hook", name),
	}
}

// Start attaches fn and returns its id. The attach happens on the
// dispatcher.
func (r *Registry) Start(fn Listener) ListenerID {
	id := ListenerID(r.nextID.Add(1))
	r.disp.Post(func() { r.attach(id, fn) })
	return id
}

// Stop detaches a listener. Unknown ids are ignored.
func (r *Registry) Stop(id ListenerID) {
	r.disp.Post(func() { r.detach(id) })
}

func (r *Registry) attach(id ListenerID, fn Listener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, entry{id: id, fn: fn})
	r.refs++
	install := r.refs == 1 && !r.installed
	r.mu.Unlock()

	if !install {
		return
	}
	if err := r.hook.Install(r.dispatch); err != nil {
		r.logger.Error("failed to install hook", "error", err)
		return
	}
	r.mu.Lock()
	r.installed = true
	r.mu.Unlock()
	r.logger.Debug("hook installed")
}

func (r *Registry) detach(id ListenerID) {
	r.mu.Lock()
	found := false
	for i, e := range r.listeners {
		if e.id == id {
			r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		r.mu.Unlock()
		return
	}
	r.refs--
	uninstall := r.refs == 0 && r.installed
	r.mu.Unlock()

	if uninstall {
		r.uninstall()
	}
}

func (r *Registry) uninstall() {
	if err := r.hook.Uninstall(); err != nil {
		r.logger.Error("failed to uninstall hook", "error", err)
	}
	r.mu.Lock()
	r.installed = false
	r.mu.Unlock()
	r.logger.Debug("hook uninstalled")
}

// ForceUninstall uninstalls the hook on the dispatcher whether or not it
// is installed. Listeners and the reference count are left untouched, so
// remaining listeners stop receiving events and a later Start does not
// reinstall while other listeners are still counted.
func (r *Registry) ForceUninstall() {
	r.disp.Post(r.uninstall)
}

// dispatch is the hook callback.
func (r *Registry) dispatch(ev Event) {
	r.mu.RLock()
	listeners := make([]Listener, len(r.listeners))
	for i, e := range r.listeners {
		listeners[i] = e.fn
	}
	r.mu.RUnlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// Refs returns the number of attached listeners.
func (r *Registry) Refs() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refs
}

// Installed reports whether the hook is currently installed.
func (r *Registry) Installed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.installed
}
