package checkpoint

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/roach88/limbwalk/internal/engine"
)

// DefaultInterval is the wall-clock spacing between periodic saves.
const DefaultInterval = 10 * time.Minute

// Info describes one completed save.
type Info struct {
	Path       string
	Step       uint64
	Counter    int64
	Limbs      int
	Bytes      int64
	Compressed bool
	At         time.Time
}

// Manager writes periodic checkpoints to a single file.
//
// Manager implements engine.Checkpointer. It is called from the automaton
// goroutine only and is not safe for concurrent use.
type Manager struct {
	path     string
	interval time.Duration
	compress bool
	now      func() time.Time
	onSaved  func(Info)
	logger   *slog.Logger

	last time.Time
	buf  []uint64
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithInterval sets the save interval. Non-positive values save on every call.
func WithInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.interval = d
	}
}

// WithCompression enables zstd bodies.
func WithCompression(on bool) ManagerOption {
	return func(m *Manager) {
		m.compress = on
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// WithOnSaved registers a callback run after every successful save.
func WithOnSaved(fn func(Info)) ManagerOption {
	return func(m *Manager) {
		m.onSaved = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a manager writing to path. The first periodic save
// happens one interval after construction.
func NewManager(path string, opts ...ManagerOption) *Manager {
	m := &Manager{
		path:     path,
		interval: DefaultInterval,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.last = m.now()
	return m
}

// Path returns the checkpoint file path.
func (m *Manager) Path() string { return m.path }

// MaybeSave saves if the interval has elapsed since the last attempt.
// A failed attempt still resets the interval.
func (m *Manager) MaybeSave(s engine.Snapshot) error {
	now := m.now()
	if m.interval > 0 && now.Sub(m.last) < m.interval {
		return nil
	}
	m.last = now
	return m.Save(s)
}

// Save writes s unconditionally, replacing any previous checkpoint.
func (m *Manager) Save(s engine.Snapshot) (err error) {
	m.buf = s.Store.AppendLimbs(m.buf[:0])
	rec := &Record{
		Step:     s.Step,
		Counter:  s.Counter,
		Group:    s.Group,
		Previous: s.Previous,
		Limbs:    m.buf,
	}

	f, err := os.OpenFile(m.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("checkpoint: open %s: %w", m.path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("checkpoint: close %s: %w", m.path, cerr)
		}
	}()

	w := bufio.NewWriterSize(f, 1<<16)
	n, err := Encode(w, rec, m.compress)
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("checkpoint: flush %s: %w", m.path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("checkpoint: sync %s: %w", m.path, err)
	}

	info := Info{
		Path:       m.path,
		Step:       s.Step,
		Counter:    s.Counter,
		Limbs:      len(rec.Limbs),
		Bytes:      n,
		Compressed: m.compress,
		At:         m.now(),
	}
	m.logger.Info("checkpoint saved",
		"path", m.path,
		"step", s.Step,
		"limbs", info.Limbs,
		"bytes", n)
	if m.onSaved != nil {
		m.onSaved(info)
	}
	return nil
}

// Restore reads the checkpoint at path.
func Restore(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open %s: %w", path, err)
	}
	defer f.Close()

	rec, err := Decode(bufio.NewReaderSize(f, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: restore %s: %w", path, err)
	}
	return rec, nil
}

// Inspect reads only the header of the checkpoint at path.
func Inspect(path string) (Header, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, 0, fmt.Errorf("checkpoint: open %s: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return Header{}, 0, fmt.Errorf("checkpoint: stat %s: %w", path, err)
	}
	h, err := ReadHeader(f)
	if err != nil {
		return Header{}, 0, fmt.Errorf("checkpoint: inspect %s: %w", path, err)
	}
	return h, fi.Size(), nil
}
