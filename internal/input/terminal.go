package input

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/mediacenter/internal/tui/styles"
)

// TermHook is a Hook fed by a TerminalHooks program.
type TermHook struct {
	mu       sync.RWMutex
	callback func(Event)
}

func (h *TermHook) Install(callback func(Event)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.callback != nil {
		return ErrHookInstalled
	}
	h.callback = callback
	return nil
}

// Uninstall is a no-op when nothing is installed.
func (h *TermHook) Uninstall() error {
	h.mu.Lock()
	h.callback = nil
	h.mu.Unlock()
	return nil
}

func (h *TermHook) emit(ev Event) {
	h.mu.RLock()
	cb := h.callback
	h.mu.RUnlock()
	if cb != nil {
		cb(ev)
	}
}

// KeyMap defines key bindings for the input watcher
type KeyMap struct {
	Quit key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("esc", "quit"),
		),
	}
}

// activityMsg reports an activity transition to the program
type activityMsg bool

type model struct {
	mouse    *TermHook
	keyboard *TermHook
	keys     KeyMap
	now      func() time.Time

	active bool
	last   Event
	events int
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.MouseMsg:
		ev := Event{Type: mouseEventType(msg), X: msg.X, Y: msg.Y, Time: m.now()}
		m.mouse.emit(ev)
		m.last = ev
		m.events++
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		ev := Event{Type: KeyDown, Key: msg.String(), Time: m.now()}
		m.keyboard.emit(ev)
		m.last = ev
		m.events++
	case activityMsg:
		m.active = bool(msg)
	}
	return m, nil
}

func (m model) View() string {
	state := styles.DimStyle.Render("inactive")
	if m.active {
		state = styles.SuccessStyle.Bold(true).Render("active")
	}
	last := "none"
	if m.events > 0 {
		last = m.last.Type.String()
		if m.last.Type == KeyDown {
			last += " " + m.last.Key
		} else {
			last += fmt.Sprintf(" (%d,%d)", m.last.X, m.last.Y)
		}
	}
	return fmt.Sprintf("user %s  events %d  last %s\n%s\n",
		state, m.events, last, styles.HelpStyle.Render(m.keys.Quit.Help().Key+" "+m.keys.Quit.Help().Desc))
}

func mouseEventType(msg tea.MouseMsg) EventType {
	if tea.MouseEvent(msg).IsWheel() {
		return MouseWheel
	}
	switch msg.Action {
	case tea.MouseActionPress:
		return MouseDown
	case tea.MouseActionRelease:
		return MouseUp
	default:
		return MouseMove
	}
}

// TerminalHooks sources mouse and keyboard hooks from a terminal through a
// bubbletea program with all-motion mouse reporting.
type TerminalHooks struct {
	Mouse    *TermHook
	Keyboard *TermHook

	program *tea.Program
}

// NewTerminalHooks builds the program; Run starts it.
func NewTerminalHooks(ctx context.Context, opts ...tea.ProgramOption) *TerminalHooks {
	t := &TerminalHooks{Mouse: &TermHook{}, Keyboard: &TermHook{}}
	m := model{mouse: t.Mouse, keyboard: t.Keyboard, keys: DefaultKeyMap(), now: time.Now}
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithMouseAllMotion()}, opts...)
	t.program = tea.NewProgram(m, opts...)
	return t
}

// Run blocks until the quit binding is pressed or ctx is done.
func (t *TerminalHooks) Run() error {
	_, err := t.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// SetActive shows an activity transition; use it as an ActivityMonitor
// listener.
func (t *TerminalHooks) SetActive(active bool) {
	t.program.Send(activityMsg(active))
}

// Quit stops the program.
func (t *TerminalHooks) Quit() {
	t.program.Quit()
}
