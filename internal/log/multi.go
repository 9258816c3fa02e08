package log

import "errors"

// MultiSink fans accepted rows out to an ordered list of child sinks.
type MultiSink struct {
	*Filter
	children []Sink
}

// NewMultiSink creates a fan-out sink. Its own filter starts at Verbose so
// children decide their thresholds.
func NewMultiSink(children ...Sink) *MultiSink {
	return &MultiSink{Filter: NewFilter(SeverityVerbose), children: children}
}

// Enabled reports whether the fan-out and at least one child accept sev.
func (m *MultiSink) Enabled(sev Severity) bool {
	if !m.Accepts(sev) {
		return false
	}
	for _, c := range m.children {
		if c.Enabled(sev) {
			return true
		}
	}
	return false
}

func (m *MultiSink) Write(row Row) {
	if !m.Accepts(row.Severity) {
		return
	}
	for _, c := range m.children {
		if c.Enabled(row.Severity) {
			c.Write(row)
		}
	}
}

func (m *MultiSink) Flush() {
	for _, c := range m.children {
		c.Flush()
	}
}

// Close closes every child and joins their errors.
func (m *MultiSink) Close() error {
	var errs []error
	for _, c := range m.children {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Children returns the child sinks in dispatch order.
func (m *MultiSink) Children() []Sink {
	return append([]Sink(nil), m.children...)
}
