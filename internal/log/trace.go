package log

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var severityStyles = map[Severity]lipgloss.Style{
	SeverityVerbose: lipgloss.NewStyle().Faint(true),
	SeverityInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	SeverityWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	SeverityError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
}

// TraceSink writes rows synchronously to a writer, stderr by default.
type TraceSink struct {
	*Filter

	mu    sync.Mutex
	w     io.Writer
	color bool
}

// NewTraceSink creates a trace sink. Severity names are colored when w is a
// terminal.
func NewTraceSink(w io.Writer, min Severity) *TraceSink {
	if w == nil {
		w = os.Stderr
	}
	color := false
	if f, ok := w.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}
	return &TraceSink{Filter: NewFilter(min), w: w, color: color}
}

func (t *TraceSink) Write(row Row) {
	if !t.Accepts(row.Severity) {
		return
	}
	line := row.Format()
	if t.color {
		sev := row.Severity.String()
		if style, ok := severityStyles[row.Severity]; ok {
			line = strings.Replace(line, sev, style.Render(sev), 1)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	io.WriteString(t.w, line+"\n")
}

func (t *TraceSink) Flush() {}

func (t *TraceSink) Close() error { return nil }
