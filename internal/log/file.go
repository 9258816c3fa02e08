package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Log file role prefixes
const (
	RoleService      = "Service-"
	RoleCore         = "Core-"
	RoleConfigurator = "Configurator-"
	RoleMigration    = "Migration-"
)

const (
	fileDateLayout = "2 1 2006" // d M yyyy
	wakeTimeout    = time.Second
	flushPoll      = 5 * time.Millisecond
)

// FileSink appends rows to a per-day log file from a dedicated worker
// goroutine. Producers only enqueue; the worker is the sole writer.
type FileSink struct {
	*Filter

	dir      string
	role     string
	instance string

	mu    sync.Mutex
	queue []func()

	wake      chan struct{}
	done      chan struct{}
	idle      atomic.Bool
	closed    atomic.Bool
	terminate atomic.Bool

	// owned by the worker
	file     *os.File
	fileName string
	err      atomic.Pointer[error]
}

// NewFileSink creates the log directory and starts the worker.
func NewFileSink(dir, role string, min Severity) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	s := &FileSink{
		Filter:   NewFilter(min),
		dir:      dir,
		role:     role,
		instance: uuid.NewString()[:8],
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// FileName returns the log file name for rows written at t.
func (s *FileSink) FileName(t time.Time) string {
	return s.role + t.Format(fileDateLayout) + "-" + s.instance + ".log"
}

// CurrentFile returns the path of the file last written, if any.
func (s *FileSink) CurrentFile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fileName == "" {
		return ""
	}
	return filepath.Join(s.dir, s.fileName)
}

// Err returns the write error that stopped the sink, if any.
func (s *FileSink) Err() error {
	if p := s.err.Load(); p != nil {
		return *p
	}
	return nil
}

func (s *FileSink) Write(row Row) {
	if !s.Accepts(row.Severity) || s.closed.Load() {
		return
	}
	s.enqueue(func() { s.write(row) })
}

func (s *FileSink) enqueue(action func()) {
	s.mu.Lock()
	s.queue = append(s.queue, action)
	s.mu.Unlock()
	s.signal()
}

func (s *FileSink) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Flush blocks until every row enqueued before the call is on disk.
func (s *FileSink) Flush() {
	for {
		select {
		case <-s.done:
			return
		default:
		}
		s.mu.Lock()
		pending := len(s.queue)
		s.mu.Unlock()
		if pending == 0 && s.idle.Load() {
			return
		}
		time.Sleep(flushPoll)
	}
}

// Close flushes, stops the worker and closes the file. Rows written after
// Close are dropped.
func (s *FileSink) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.Flush()
	s.terminate.Store(true)
	s.signal()
	<-s.done
	return s.Err()
}

func (s *FileSink) run() {
	defer close(s.done)
	defer s.closeFile()

	timer := time.NewTimer(wakeTimeout)
	defer timer.Stop()

	for {
		s.idle.Store(true)
		select {
		case <-s.wake:
		case <-timer.C:
		}
		s.idle.Store(false)
		timer.Reset(wakeTimeout)

		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, action := range batch {
			action()
		}

		if s.terminate.Load() {
			s.mu.Lock()
			empty := len(s.queue) == 0
			s.mu.Unlock()
			if empty {
				return
			}
		}
	}
}

func (s *FileSink) write(row Row) {
	if s.Err() != nil {
		return
	}
	name := s.FileName(row.Time)
	if name != s.fileName || s.file == nil {
		if err := s.rotate(name); err != nil {
			s.fail(err)
			return
		}
	}
	if _, err := io.WriteString(s.file, row.Format()+"\n"); err != nil {
		s.fail(fmt.Errorf("failed to write log row: %w", err))
	}
}

func (s *FileSink) rotate(name string) error {
	s.closeFile()
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	s.mu.Lock()
	s.file = f
	s.fileName = name
	s.mu.Unlock()
	return nil
}

func (s *FileSink) closeFile() {
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
}

// fail stops the sink for good; nothing is retried.
func (s *FileSink) fail(err error) {
	s.err.CompareAndSwap(nil, &err)
	fmt.Fprintf(os.Stderr, "log file sink stopped: %v\n", err)
}
