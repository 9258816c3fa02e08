package log

import (
	"fmt"
	"strings"
	"time"
)

const rowTimeLayout = "2006-01-02 15:04:05.000"

// Row is one immutable log event.
type Row struct {
	Severity   Severity
	Message    string
	Category   string
	ThreadID   int
	ThreadName string
	Time       time.Time
}

// Format renders the row as a single line without the trailing newline.
func (r Row) Format() string {
	var b strings.Builder
	b.WriteString(r.Time.Format(rowTimeLayout))
	b.WriteByte(' ')
	b.WriteString(r.Severity.String())
	if r.Category != "" {
		fmt.Fprintf(&b, " [%s]", r.Category)
	}
	fmt.Fprintf(&b, " %s(%d) ", r.ThreadName, r.ThreadID)
	// keep one row per line
	b.WriteString(strings.ReplaceAll(r.Message, "\n", `\n`))
	return b.String()
}
