package log

import "sync/atomic"

// Sink is a destination for log rows.
type Sink interface {
	// Enabled reports whether a row of this severity would be accepted.
	Enabled(sev Severity) bool
	// Write delivers a row; rows that are not accepted are dropped.
	Write(row Row)
	// Flush blocks until every accepted row has been written.
	Flush()
	// Close flushes and releases the sink.
	Close() error
}

// Filter is the enabled flag and minimum severity shared by every sink.
// The zero value accepts nothing; use NewFilter.
type Filter struct {
	enabled atomic.Bool
	min     atomic.Int32
}

// NewFilter returns an enabled filter with the given threshold.
func NewFilter(min Severity) *Filter {
	f := &Filter{}
	f.enabled.Store(true)
	f.min.Store(int32(min))
	return f
}

// Accepts reports whether the filter passes a row of this severity.
func (f *Filter) Accepts(sev Severity) bool {
	return f.enabled.Load() && sev >= Severity(f.min.Load())
}

func (f *Filter) SetEnabled(enabled bool)   { f.enabled.Store(enabled) }
func (f *Filter) IsEnabled() bool           { return f.enabled.Load() }
func (f *Filter) SetSeverity(min Severity)  { f.min.Store(int32(min)) }
func (f *Filter) MinSeverity() Severity     { return Severity(f.min.Load()) }
func (f *Filter) Enabled(sev Severity) bool { return f.Accepts(sev) }
